package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"fleet-visualizer/internal/model"
)

// Detection is one object found in an uploaded image.
type Detection struct {
	ClassName  string
	Confidence float64 // 0..1
	BBox       [4]float64
}

// DetectResult is the decoded /api/detect response.
type DetectResult struct {
	Detections         []Detection
	AnnotatedImagePath string
}

// Detect uploads an image for trash detection. pos is optional and tags the
// detection task with where the photo was taken.
func (c *Client) Detect(ctx context.Context, filename string, image io.Reader, pos *model.Position) (*DetectResult, error) {
	if pos != nil {
		if err := pos.Validate(); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, image); err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if pos != nil {
		_ = mw.WriteField("latitude", strconv.FormatFloat(pos.Lat, 'f', -1, 64))
		_ = mw.WriteField("longitude", strconv.FormatFloat(pos.Lng, 'f', -1, 64))
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var raw struct {
		Result []struct {
			ClassName  string          `json:"class_name"`
			Confidence json.RawMessage `json:"confidence"`
			BBox       []float64       `json:"bbox"`
		} `json:"result"`
		AnnotatedImagePath string `json:"annotated_image_path"`
	}
	if _, err := c.post(ctx, "/api/detect", mw.FormDataContentType(), &buf, &raw); err != nil {
		return nil, err
	}

	out := &DetectResult{AnnotatedImagePath: raw.AnnotatedImagePath}
	for _, r := range raw.Result {
		d := Detection{ClassName: r.ClassName, Confidence: parseConfidence(r.Confidence)}
		copy(d.BBox[:], r.BBox)
		out.Detections = append(out.Detections, d)
	}
	return out, nil
}

// parseConfidence accepts 0.87 as well as the backend's "87.00%".
func parseConfidence(raw json.RawMessage) float64 {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		f, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0
		}
		return f / 100
	}
	f, _ = strconv.ParseFloat(s, 64)
	return f
}
