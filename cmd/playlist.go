package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"

	"github.com/desertthunder/cadence/internal/formatter"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/image/draw"
)

const (
	coverSize      = 640       // Spotify's preferred square cover dimension
	coverMaxBase64 = 256 * 1024 // provider limit on the encoded payload
)

// PlaylistLatest shows the most recently generated playlist.
func (r *Runner) PlaylistLatest(ctx context.Context, cmd *cli.Command) error {
	store, err := r.snapshots()
	if err != nil {
		return err
	}

	meta, err := store.LoadLatestPlaylist()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(meta, true)
	}

	text, err := formatter.ExportPlaylistText(*meta)
	if err != nil {
		return err
	}
	return r.writePlain("%s", text)
}

// PlaylistCover resizes an image to the provider's cover format and uploads it.
func (r *Runner) PlaylistCover(ctx context.Context, cmd *cli.Command) error {
	if err := r.authenticateMusic(ctx); err != nil {
		return err
	}

	playlistID := cmd.String("playlist")
	if playlistID == "" {
		store, err := r.snapshots()
		if err != nil {
			return err
		}
		meta, err := store.LoadLatestPlaylist()
		if err != nil {
			return fmt.Errorf("no --playlist given and no latest playlist: %w", err)
		}
		playlistID = meta.PlaylistID
	}

	cover, err := prepareCover(cmd.String("image"))
	if err != nil {
		return err
	}

	r.logger.Info("uploading cover", "playlist", playlistID, "bytes", len(cover))
	if err := r.music.UploadCover(ctx, playlistID, cover); err != nil {
		return fmt.Errorf("cover upload failed: %w", err)
	}

	return r.writePlain("✓ Cover uploaded to playlist %s\n", playlistID)
}

// prepareCover reads a JPEG or PNG, scales it to a square cover, and
// re-encodes as JPEG under the provider's size limit, stepping quality
// down until it fits.
func prepareCover(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: not a decodable JPEG or PNG: %v", shared.ErrInvalidInput, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, coverSize, coverSize))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	for quality := 90; quality >= 30; quality -= 10 {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("jpeg encoding failed: %w", err)
		}
		if base64.StdEncoding.EncodedLen(buf.Len()) <= coverMaxBase64 {
			return buf.Bytes(), nil
		}
	}
	return nil, fmt.Errorf("%w: image does not fit the %dKB cover limit even at minimum quality", shared.ErrInvalidInput, coverMaxBase64/1024)
}
