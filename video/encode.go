package video

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/disintegration/gift"
	"github.com/pkg/errors"
)

// Encoder turns captured images into JPEG frames, applying the rotation
// transform on the way.
type Encoder struct {
	transform Transform
	quality   int
	filter    *gift.GIFT
}

func NewEncoder(t Transform, quality int) *Encoder {
	g := gift.New()
	if t.HFlip {
		g.Add(gift.FlipHorizontal())
	}
	if t.VFlip {
		g.Add(gift.FlipVertical())
	}
	return &Encoder{transform: t, quality: quality, filter: g}
}

// Encode transforms img and encodes it as JPEG.
func (e *Encoder) Encode(img image.Image) ([]byte, error) {
	if !e.transform.Identity() {
		dst := image.NewRGBA(e.filter.Bounds(img.Bounds()))
		e.filter.Draw(dst, img)
		img = dst
	}

	var b bytes.Buffer
	if err := jpeg.Encode(&b, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, errors.Wrap(err, "error encoding jpeg")
	}
	return b.Bytes(), nil
}

// Reencode applies the transform to a JPEG frame. Frames pass through
// untouched when there is nothing to transform.
func (e *Encoder) Reencode(frame []byte) ([]byte, error) {
	if e.transform.Identity() {
		return frame, nil
	}
	img, err := jpeg.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, errors.Wrap(err, "error decoding jpeg")
	}
	return e.Encode(img)
}

// yuyvImage wraps a packed YUYV 4:2:2 frame as an image.
func yuyvImage(frame []byte, w, h int) (*image.YCbCr, error) {
	if len(frame) < w*h*2 {
		return nil, errors.Errorf("short yuyv frame (exp: %d, read %d)", w*h*2, len(frame))
	}
	yuyv := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
	for i := range yuyv.Cb {
		ii := i * 4
		yuyv.Y[i*2] = frame[ii]
		yuyv.Y[i*2+1] = frame[ii+2]
		yuyv.Cb[i] = frame[ii+1]
		yuyv.Cr[i] = frame[ii+3]
	}
	return yuyv, nil
}
