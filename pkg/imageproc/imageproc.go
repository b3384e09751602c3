package imageproc

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"tradingview-extract/config"
)

// Load decodes a raster image from disk. PNG, JPEG, BMP, GIF and TIFF are
// supported through the imaging decoder registry.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return img, nil
}

// Preprocess crops the configured report region out of the source image and
// applies the pixel adjustments that improve OCR accuracy on dark TradingView
// themes. The source must fully contain the crop region.
func Preprocess(src image.Image, cfg config.Preprocess) (*image.NRGBA, error) {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width < cfg.CropX+cfg.CropWidth || height < cfg.CropY+cfg.CropHeight {
		return nil, fmt.Errorf("image dimensions (%dx%d) are smaller than required crop region (%dx%d)",
			width, height, cfg.CropX+cfg.CropWidth, cfg.CropY+cfg.CropHeight)
	}

	rect := image.Rect(cfg.CropX, cfg.CropY, cfg.CropX+cfg.CropWidth, cfg.CropY+cfg.CropHeight)
	out := imaging.Crop(src, rect)

	if cfg.Brightness != 0 {
		out = imaging.AdjustBrightness(out, cfg.Brightness)
	}
	if cfg.Contrast != 0 {
		out = imaging.AdjustContrast(out, cfg.Contrast)
	}
	if cfg.Gamma != 0 && cfg.Gamma != 1.0 {
		out = imaging.AdjustGamma(out, cfg.Gamma)
	}

	if cfg.Grayscale {
		out = imaging.Grayscale(out)
	} else if cfg.Saturation != 0 {
		out = imaging.AdjustSaturation(out, cfg.Saturation)
	}

	if cfg.Sharpen > 0 {
		out = imaging.Sharpen(out, cfg.Sharpen)
	}

	if cfg.Thresholding {
		out = threshold(imaging.Grayscale(out), cfg.ThresholdValue)
	}

	return out, nil
}

// EncodePNG renders the processed image into PNG bytes for the OCR engine.
func EncodePNG(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes the processed image next to the inbox so a failed parse can be
// inspected by eye.
func Save(img *image.NRGBA, path string) error {
	if err := imaging.Save(img, path); err != nil {
		return fmt.Errorf("failed to save processed image %s: %w", path, err)
	}
	return nil
}

// threshold binarizes a grayscale image at the given cut-off value.
func threshold(img *image.NRGBA, value uint8) *image.NRGBA {
	out := imaging.Clone(img)
	bounds := out.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := out.PixOffset(x, y)
			v := uint8(0)
			if out.Pix[i] > value {
				v = 255
			}
			out.Pix[i] = v
			out.Pix[i+1] = v
			out.Pix[i+2] = v
			out.Pix[i+3] = 255
		}
	}
	return out
}
