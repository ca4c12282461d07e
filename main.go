package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"aria/internal/config"
	"aria/internal/coverart"
	"aria/internal/db"
	"aria/internal/lastfm"
	"aria/internal/library"
	"aria/internal/scanner"
)

const usage = `usage: aria <command> [args]

commands:
  add-root <path>      register a directory for scanning
  remove-root <path>   unregister a directory
  roots                list registered directories
  scan                 scan all roots and reconcile the catalog
  search <term>        search tracks, albums and artists
  recent [n]           recently added albums
  random [n]           random albums
  most-played [n]      most played tracks
  favorites            liked tracks
  genres               genres with track counts
  stats                library totals
  like <track-id>      mark a track as liked
  unlike <track-id>    clear a track's liked mark
  played <track-id>    record one play of a track

playlist commands:
  playlist create <name>
  playlist list
  playlist delete <id>
  playlist add <id> <track-id>
  playlist remove <id> <track-id>
  playlist tracks <id>
`

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().Timestamp().Logger()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	paths, err := resolvePaths()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve data paths")
	}

	sqliteDB, err := db.Bootstrap(paths.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open catalog")
	}
	defer sqliteDB.Close()

	covers, err := coverart.NewStore(paths.CoversDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cover art store")
	}

	roots := library.NewRootRepository(sqliteDB)
	browse := library.NewBrowseRepository(sqliteDB)
	playlists := library.NewPlaylistRepository(sqliteDB)
	scan := scanner.NewService(sqliteDB, roots, covers)

	if apiKey := os.Getenv("ARIA_LASTFM_API_KEY"); apiKey != "" {
		scan.SetEnricher(lastfm.NewClient(sqliteDB, apiKey))
	}

	ctx := context.Background()
	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "add-root":
		requireArgs(args, 1)
		err = roots.Add(ctx, args[0])
	case "remove-root":
		requireArgs(args, 1)
		err = roots.Remove(ctx, args[0])
	case "roots":
		var registered []string
		if registered, err = roots.List(ctx); err == nil {
			err = printJSON(registered)
		}
	case "scan":
		scan.SetEmitter(func(_ string, payload any) {
			if progress, ok := payload.(scanner.Progress); ok {
				log.Info().Int("percent", progress.Percent).Msg(progress.Message)
			}
		})
		err = scan.Scan(ctx)
	case "search":
		requireArgs(args, 1)
		var result library.SearchResult
		if result, err = browse.Search(ctx, strings.Join(args, " ")); err == nil {
			err = printJSON(result)
		}
	case "recent":
		var albums []library.Album
		if albums, err = browse.RecentAlbums(ctx, optionalLimit(args)); err == nil {
			err = printJSON(albums)
		}
	case "random":
		var albums []library.Album
		if albums, err = browse.RandomAlbums(ctx, optionalLimit(args)); err == nil {
			err = printJSON(albums)
		}
	case "most-played":
		var tracks []library.Track
		if tracks, err = browse.MostPlayedTracks(ctx, optionalLimit(args)); err == nil {
			err = printJSON(tracks)
		}
	case "favorites":
		var tracks []library.Track
		if tracks, err = browse.FavoriteTracks(ctx); err == nil {
			err = printJSON(tracks)
		}
	case "genres":
		var genres []library.Genre
		if genres, err = browse.Genres(ctx); err == nil {
			err = printJSON(genres)
		}
	case "stats":
		var stats library.Stats
		if stats, err = browse.Stats(ctx); err == nil {
			err = printJSON(stats)
		}
	case "like":
		requireArgs(args, 1)
		err = browse.SetTrackLiked(ctx, args[0], true)
	case "unlike":
		requireArgs(args, 1)
		err = browse.SetTrackLiked(ctx, args[0], false)
	case "played":
		requireArgs(args, 1)
		err = browse.IncrementPlayCount(ctx, args[0])
	case "playlist":
		requireArgs(args, 1)
		err = runPlaylistCommand(ctx, playlists, args[0], args[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("command failed")
	}
}

func runPlaylistCommand(ctx context.Context, playlists *library.PlaylistRepository, subcommand string, args []string) error {
	switch subcommand {
	case "create":
		requireArgs(args, 1)
		playlist, err := playlists.Create(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printJSON(playlist)
	case "list":
		listed, err := playlists.List(ctx)
		if err != nil {
			return err
		}
		return printJSON(listed)
	case "delete":
		requireArgs(args, 1)
		return playlists.Delete(ctx, args[0])
	case "add":
		requireArgs(args, 2)
		return playlists.AddTrack(ctx, args[0], args[1])
	case "remove":
		requireArgs(args, 2)
		return playlists.RemoveTrack(ctx, args[0], args[1])
	case "tracks":
		requireArgs(args, 1)
		tracks, err := playlists.Tracks(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(tracks)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
		return nil
	}
}

func resolvePaths() (config.Paths, error) {
	if baseDir := os.Getenv("ARIA_DATA_DIR"); baseDir != "" {
		return config.ResolvePathsIn(baseDir)
	}

	return config.ResolvePaths("aria")
}

func requireArgs(args []string, count int) {
	if len(args) < count {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func optionalLimit(args []string) int {
	if len(args) == 0 {
		return 0
	}

	var limit int
	if _, err := fmt.Sscanf(args[0], "%d", &limit); err != nil {
		return 0
	}

	return limit
}

func printJSON(payload any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
