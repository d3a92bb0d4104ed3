package frames

import (
	"fmt"
	"image"
	"io"

	"gocv.io/x/gocv"

	"firesmoke-api/internal/models"
)

// captureReader reads frames through OpenCV's FFmpeg backend
type captureReader struct {
	cap  *gocv.VideoCapture
	bgr  gocv.Mat
	rgba gocv.Mat
}

// OpenCapture opens a video file or stream URI with OpenCV
func OpenCapture(path string) (FrameReader, error) {
	cap, err := gocv.OpenVideoCaptureWithAPI(path, gocv.VideoCaptureFFmpeg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSourceUnreadable, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("%w: could not open %s", models.ErrSourceUnreadable, path)
	}
	return &captureReader{
		cap:  cap,
		bgr:  gocv.NewMat(),
		rgba: gocv.NewMat(),
	}, nil
}

func (r *captureReader) FPS() float64 {
	return r.cap.Get(gocv.VideoCaptureFPS)
}

func (r *captureReader) Read() (*image.RGBA, error) {
	if ok := r.cap.Read(&r.bgr); !ok || r.bgr.Empty() {
		return nil, io.EOF
	}
	return MatToRGBA(r.bgr, &r.rgba)
}

func (r *captureReader) Close() error {
	r.bgr.Close()
	r.rgba.Close()
	return r.cap.Close()
}

// MatToRGBA converts an OpenCV BGR frame to an *image.RGBA. OpenCV decodes in
// BGR channel order; the inference path expects RGB.
func MatToRGBA(bgr gocv.Mat, scratch *gocv.Mat) (*image.RGBA, error) {
	if err := gocv.CvtColor(bgr, scratch, gocv.ColorBGRToRGBA); err != nil {
		return nil, fmt.Errorf("failed to convert frame colour: %w", err)
	}

	cols, rows := scratch.Cols(), scratch.Rows()
	return &image.RGBA{
		Pix:    scratch.ToBytes(),
		Stride: cols * 4,
		Rect:   image.Rect(0, 0, cols, rows),
	}, nil
}
