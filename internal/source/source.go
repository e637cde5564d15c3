// Package source turns storyboard documents into shots. A PDF page or an
// image file becomes one still shot.
package source

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/gen2brain/go-fitz"

	"github.com/ivlev/shotline/internal/system"
)

var ErrUnsupported = errors.New("unsupported storyboard source")

// Source is a paged storyboard document.
type Source interface {
	PageCount() int
	GetPageDimensions(index int) (width, height float64, err error)
	RenderPage(index int, dpi int) (image.Image, error)
	Close() error
}

// Open picks a source for path: a PDF, a single image or a folder of images.
func Open(path string) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	switch {
	case fi.IsDir(), system.HasExtension(path, system.ImageExtensions):
		return NewImageSource(path)
	case system.HasExtension(path, system.BoardExtensions):
		return NewFitzPDFSource(path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
}

type FitzPDFSource struct {
	doc  *fitz.Document
	path string
}

func NewFitzPDFSource(path string) (*FitzPDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &FitzPDFSource{doc: doc, path: path}, nil
}

func (f *FitzPDFSource) PageCount() int {
	return f.doc.NumPage()
}

func (f *FitzPDFSource) GetPageDimensions(index int) (float64, float64, error) {
	rect, err := f.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return float64(rect.Dx()), float64(rect.Dy()), nil
}

// RenderPage opens its own document handle, so pages can render in parallel.
func (f *FitzPDFSource) RenderPage(index int, dpi int) (image.Image, error) {
	workerDoc, err := fitz.New(f.path)
	if err != nil {
		return nil, err
	}
	defer workerDoc.Close()
	return workerDoc.ImageDPI(index, float64(dpi))
}

func (f *FitzPDFSource) Close() error {
	return f.doc.Close()
}
