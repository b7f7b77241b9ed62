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

package mos

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FSImageDB implements ImageStorage. It uses images stored on the filesystem
// and decodes them on demand into ColorSpace.
// Paths are relative to Root; if Root is empty they're used as they are.
type FSImageDB struct {
	Root       string
	Paths      []string
	ColorSpace ColorSpace
}

// NewFSImageDB returns an empty database rooted at root.
func NewFSImageDB(root string, cs ColorSpace) *FSImageDB {
	return &FSImageDB{Root: root, Paths: nil, ColorSpace: cs}
}

// NewFSImageDBFromFiles returns a database containing exactly the given
// files, in that order.
func NewFSImageDBFromFiles(cs ColorSpace, paths ...string) *FSImageDB {
	db := NewFSImageDB("", cs)
	db.Paths = append(db.Paths, paths...)
	return db
}

// GetPath returns the path of the image with the given id.
func (db *FSImageDB) GetPath(id ImageID) string {
	if db.Root == "" {
		return db.Paths[id]
	}
	return filepath.Join(db.Root, db.Paths[id])
}

func (db *FSImageDB) NumImages() ImageID {
	return ImageID(len(db.Paths))
}

func (db *FSImageDB) Name(id ImageID) string {
	if id < 0 || id >= db.NumImages() {
		return fmt.Sprintf("image-%d", id)
	}
	return db.GetPath(id)
}

// LoadImage opens and decodes the image. Errors opening or decoding the file
// are returned as *CollaboratorError.
func (db *FSImageDB) LoadImage(id ImageID) (*Image, error) {
	if id < 0 || id >= db.NumImages() {
		return nil, fmt.Errorf("invalid image id: not associated with an image %d", id)
	}
	file := db.GetPath(id)
	r, openErr := os.Open(file)
	if openErr != nil {
		return nil, &CollaboratorError{Stage: "load", Source: file, Err: openErr}
	}
	defer r.Close()
	img, decodeErr := Decode(r, db.ColorSpace)
	if decodeErr != nil {
		return nil, &CollaboratorError{Stage: "decode", Source: file, Err: decodeErr}
	}
	return img, nil
}

// GenFSDatabase collects all images in root accepted by filter (AllDecodable
// if nil). If recursive is true subdirectories are searched as well.
// Paths are sorted so ids are stable between runs.
func GenFSDatabase(root string, recursive bool, filter SupportedImageFunc, cs ColorSpace) (*FSImageDB, error) {
	root, absErr := filepath.Abs(root)
	if absErr != nil {
		return nil, absErr
	}
	if filter == nil {
		filter = AllDecodable
	}
	var res *FSImageDB
	var err error
	if recursive {
		res, err = genFSDBRecursive(root, filter, cs)
	} else {
		res, err = genFSDBNonRecursive(root, filter, cs)
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(res.Paths)
	return res, nil
}

func genFSDBRecursive(root string, filter SupportedImageFunc, cs ColorSpace) (*FSImageDB, error) {
	result := NewFSImageDB(root, cs)
	walkFunc := func(path string, info os.FileInfo, err error) error {
		switch {
		case err != nil:
			return err
		case !info.IsDir() && filter(filepath.Ext(path)):
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				return relErr
			}
			result.Paths = append(result.Paths, rel)
			return nil
		default:
			return nil
		}
	}
	if err := filepath.Walk(root, walkFunc); err != nil {
		return nil, err
	}
	return result, nil
}

func genFSDBNonRecursive(root string, filter SupportedImageFunc, cs ColorSpace) (*FSImageDB, error) {
	result := NewFSImageDB(root, cs)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if !entry.IsDir() && filter(filepath.Ext(entry.Name())) {
			result.Paths = append(result.Paths, entry.Name())
		}
	}
	return result, nil
}
