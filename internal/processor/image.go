/**
 * Single-image document processor.
 *
 * The one-page analogue of the PDF pipeline: decode, preprocess, recognize.
 * A file that cannot be decoded fails with a LoadError.
 */

package processor

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/phuslu/log"

	"github.com/MuthuAjay/contracts-v3/internal/config"
	pipelineerrors "github.com/MuthuAjay/contracts-v3/internal/errors"
	imagingpipe "github.com/MuthuAjay/contracts-v3/internal/imaging"
	"github.com/MuthuAjay/contracts-v3/internal/logging"
	"github.com/MuthuAjay/contracts-v3/internal/ocr"
)

// ImageProcessor runs OCR over a standalone raster image.
type ImageProcessor struct {
	cfg    config.ImageConfig
	pages  *PageProcessor
	logger log.Logger
}

// NewImageProcessor builds the image pipeline. OCR is always enabled here;
// an image document has no native text layer to fall back on.
func NewImageProcessor(cfg config.ImageConfig, recognizer ocr.Recognizer, geometry *imagingpipe.Engine) *ImageProcessor {
	return &ImageProcessor{
		cfg:    cfg,
		pages:  NewPageProcessor(recognizer, geometry, true, 0),
		logger: logging.New("image-processor"),
	}
}

// decodedImage adapts an already-decoded image to the PageSource interface.
// NativeText is always empty so the page strategy goes straight to OCR.
type decodedImage struct {
	img image.Image
}

func (d *decodedImage) NativeText() (string, error) { return "", nil }

func (d *decodedImage) Rasterize(dpi int) (image.Image, error) { return d.img, nil }

// Process decodes and recognizes the image at filePath.
func (p *ImageProcessor) Process(ctx context.Context, filePath string) (*DocumentResult, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, pipelineerrors.NewLoadError(filePath, err)
	}

	page := p.pages.ProcessPage(ctx, filePath, 0, &decodedImage{img: img})

	bounds := img.Bounds()
	return &DocumentResult{
		Content: []PageResult{page},
		Metadata: map[string]interface{}{
			"format":   format,
			"filename": filepath.Base(filePath),
			"width":    bounds.Dx(),
			"height":   bounds.Dy(),
			"channels": channelCount(img),
		},
	}, nil
}

// channelCount reports the color channel count the way raster tooling
// conventionally does: 1 for grayscale, 3 for opaque color, 4 with alpha.
func channelCount(img image.Image) int {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.YCbCr:
		return 3
	default:
		return 4
	}
}
