// Copyright 2018 Fabian Wenzelmann
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/mmavko/mos"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mosaic [TARGET]",
	Short: "Create a photomosaic from a target image and a set of source images",
	Long: `mosaic divides a target image into square tiles and replaces each tile
by the most similar square cut out of the source images.

Each source is scaled to several sizes and cut into overlapping tiles, the
tile with the smallest sum of absolute pixel differences wins.

Examples:
  # Use all images in a directory as sources
  mosaic --target cat.jpg --sources-dir ~/pictures --recursive -o cat-mosaic.jpg

  # Explicit sources, 10 pixel tiles and 100 tiles along the larger side
  mosaic cat.jpg -s a.png -s b.png --tile-size 10 --grid 100 -o out.png

  # Start HTTP server
  mosaic serve --port 8080`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runMosaic,
}

// Execute runs the root command, it is called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mosaic.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "print debug output")

	// engine options, shared with serve
	rootCmd.PersistentFlags().Int("tile-size", mos.DefaultTileSize, "edge length of a tile in pixels")
	rootCmd.PersistentFlags().Int("tile-steps", mos.DefaultTileSteps, "number of scale segments and tile overlap divisor")
	rootCmd.PersistentFlags().Int("grid", mos.DefaultGridTargetSize, "number of tiles along the larger side of the target")
	rootCmd.PersistentFlags().Int("routines", 0, "number of matching goroutines (default 2 * number of CPUs)")
	rootCmd.PersistentFlags().String("interp", "bilinear", "interpolation (nearest|bilinear|bicubic|mitchell|lanczos2|lanczos3)")
	rootCmd.PersistentFlags().String("color-space", "rgb", "color space used for matching (rgb|rgba|gray)")

	// input and output
	rootCmd.Flags().StringP("target", "t", "", "target image")
	rootCmd.Flags().StringSliceP("source", "s", []string{}, "source image (repeatable)")
	rootCmd.Flags().StringP("sources-dir", "d", "", "directory containing source images")
	rootCmd.Flags().BoolP("recursive", "r", false, "search the sources directory recursively")
	rootCmd.Flags().StringP("output", "o", "mosaic.jpg", "output file")
	rootCmd.Flags().StringP("format", "f", "", "output format (jpeg|png|gif|bmp|tiff|webp), default from the output extension")
	rootCmd.Flags().IntP("quality", "q", 90, "jpeg and webp quality (1-100)")

	for _, name := range []string{"verbose", "tile-size", "tile-steps", "grid", "routines", "interp", "color-space"} {
		viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
	for _, name := range []string{"target", "source", "sources-dir", "recursive", "output", "format", "quality"} {
		viper.BindPFlag(name, rootCmd.Flags().Lookup(name))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mosaic")
	}

	viper.SetEnvPrefix("MOSAIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}
	if err := viper.ReadInConfig(); err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Info("Using config file")
	}
}

func configFromViper() (mos.Config, error) {
	cfg := mos.DefaultConfig()
	cfg.TileSize = viper.GetInt("tile-size")
	cfg.TileSteps = viper.GetInt("tile-steps")
	cfg.GridTargetSize = viper.GetInt("grid")
	if routines := viper.GetInt("routines"); routines > 0 {
		cfg.NumRoutines = routines
	}
	return cfg, cfg.Validate()
}

// expandPath expands ~ and returns an absolute path.
func expandPath(path string) (string, error) {
	res, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(res)
}

func loadSources(cs mos.ColorSpace) (*mos.FSImageDB, error) {
	db := mos.NewFSImageDBFromFiles(cs)
	for _, file := range viper.GetStringSlice("source") {
		path, err := expandPath(file)
		if err != nil {
			return nil, err
		}
		db.Paths = append(db.Paths, path)
	}
	if dir := viper.GetString("sources-dir"); dir != "" {
		root, err := expandPath(dir)
		if err != nil {
			return nil, err
		}
		recursive := viper.GetBool("recursive")
		log.WithFields(log.Fields{
			"dir":       root,
			"recursive": recursive,
		}).Info("Loading source images")
		dirDB, err := mos.GenFSDatabase(root, recursive, mos.AllDecodable, cs)
		if err != nil {
			return nil, errors.Wrapf(err, "can't read sources from %s", root)
		}
		for _, id := range mos.IDList(dirDB) {
			db.Paths = append(db.Paths, dirDB.GetPath(id))
		}
	}
	if db.NumImages() == 0 {
		return nil, errors.New("no source images given, use --source or --sources-dir")
	}
	return db, nil
}

func outputMimeType(output string) (string, error) {
	if format := viper.GetString("format"); format != "" {
		return mos.MimeTypeFromExt("." + strings.TrimPrefix(format, "."))
	}
	return mos.MimeTypeFromExt(filepath.Ext(output))
}

func writeImage(path string, img *mos.Image, mimeType string, quality int) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	if err := mos.Encode(f, img, mimeType, quality); err != nil {
		f.Close()
		return 0, &mos.CollaboratorError{Stage: "encode", Source: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return 0, err
	}
	return info.Size(), f.Close()
}

func runMosaic(cmd *cobra.Command, args []string) error {
	targetPath := viper.GetString("target")
	if targetPath == "" && len(args) > 0 {
		targetPath = args[0]
	}
	if targetPath == "" {
		return cmd.Help()
	}

	cfg, err := configFromViper()
	if err != nil {
		return err
	}
	cs, err := mos.ParseColorSpace(viper.GetString("color-space"))
	if err != nil {
		return err
	}
	interP, err := mos.InterPFromString(viper.GetString("interp"))
	if err != nil {
		return err
	}
	quality := viper.GetInt("quality")
	if quality < 1 || quality > 100 {
		return fmt.Errorf("quality must be a value between 1 and 100, got %d", quality)
	}
	output, err := expandPath(viper.GetString("output"))
	if err != nil {
		return err
	}
	mimeType, err := outputMimeType(output)
	if err != nil {
		return err
	}

	targetPath, err = expandPath(targetPath)
	if err != nil {
		return err
	}
	target, err := mos.NewFSImageDBFromFiles(cs, targetPath).LoadImage(0)
	if err != nil {
		return err
	}
	sources, err := loadSources(cs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"target":  targetPath,
		"sources": sources.NumImages(),
		"config":  cfg,
	}).Info("Creating mosaic")
	start := time.Now()
	progress := mos.LoggerProgressFunc("Sources processed", int(sources.NumImages()), 10)
	result, err := mos.ComposeMosaic(ctx, target, sources, cfg, mos.NewNfntResizer(interP), progress)
	if err != nil {
		return err
	}
	size, err := writeImage(output, result, mimeType, quality)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"output":   output,
		"width":    result.Width,
		"height":   result.Height,
		"size":     humanize.IBytes(uint64(size)),
		"duration": time.Since(start),
	}).Info("Mosaic written")
	return nil
}
