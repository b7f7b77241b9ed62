// Package mos builds photomosaics: a target image is divided into square
// tiles and each tile is replaced by the most similar square cut out of a set
// of source images.
//
// Each source is scaled to several sizes and cut into overlapping tiles (the
// tile pool). Similarity is the sum of absolute differences of the raw channel
// values, the tile with the smallest distance wins.
//
// It ships with an executable program to generate mosaics from image files
// and to serve the same functionality over HTTP.
package mos
