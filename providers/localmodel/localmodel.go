package localmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"

	"plant-diagnosis-pipeline/models"
	"plant-diagnosis-pipeline/providers"
)

// Metadata describes the ONNX model: tensor shapes and the ordered class
// list the output scores map onto. Class labels follow the PlantVillage
// convention "Plant___Disease_name" with "___healthy" for healthy leaves.
type Metadata struct {
	Classes     []string `json:"classes"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	ImageSize   int      `json:"image_size"`
}

// Client runs a locally-hosted classification model in-process. The
// adapter contract stays blocking-shaped: no network call, but the same
// Classify signature as every remote provider.
type Client struct {
	name         string
	session      *ort.AdvancedSession
	metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]

	// The session owns fixed input/output tensors, so runs serialize.
	mu sync.Mutex
}

func NewClient(cfg models.ProviderConfig) (*Client, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	metaFile, err := os.ReadFile(cfg.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read model metadata: %w", err)
	}
	var metadata Metadata
	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse model metadata: %w", err)
	}
	if len(metadata.Classes) == 0 {
		return nil, fmt.Errorf("model metadata has no classes")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{"input"}, []string{"output"},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Client{
		name:         cfg.Name,
		session:      session,
		metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (c *Client) Name() string { return c.name }

// Classify runs the model on the first image only; the local model is a
// single-image classifier, and ImageCount records what was consumed.
func (c *Client) Classify(ctx context.Context, images []models.NormalizedImage) (*models.ProviderResult, error) {
	if len(images) == 0 {
		return nil, models.NewProviderError(c.name, "no images to classify", false)
	}
	if err := ctx.Err(); err != nil {
		return nil, models.NewProviderError(c.name, "context done before inference: "+err.Error(), false)
	}

	started := time.Now()

	img, _, err := image.Decode(bytes.NewReader(images[0].Bytes))
	if err != nil {
		return nil, models.NewProviderError(c.name, "failed to decode normalized image: "+err.Error(), false)
	}
	input := c.imageToTensor(img)

	c.mu.Lock()
	copy(c.inputTensor.GetData(), input)
	runErr := c.session.Run()
	var scores []float32
	if runErr == nil {
		scores = append([]float32(nil), c.outputTensor.GetData()...)
	}
	c.mu.Unlock()

	if runErr != nil {
		// Session-run failures are typically transient resource issues.
		return nil, models.NewProviderError(c.name, "inference failed: "+runErr.Error(), true)
	}

	preds, healthy := c.scoresToPredictions(scores)
	if len(preds) == 0 && !healthy {
		return nil, models.NewProviderError(c.name, "model produced no predictions", false)
	}

	overall := 0.0
	if len(preds) > 0 {
		overall = preds[0].Confidence
	} else {
		overall = 1.0
	}

	return &models.ProviderResult{
		Provider:       c.name,
		Predictions:    preds,
		Confidence:     overall,
		IsHealthy:      healthy,
		ProcessingTime: time.Since(started),
		ImageCount:     1,
	}, nil
}

func (c *Client) Close() {
	if c.inputTensor != nil {
		c.inputTensor.Destroy()
	}
	if c.outputTensor != nil {
		c.outputTensor.Destroy()
	}
	if c.session != nil {
		c.session.Destroy()
	}
	ort.DestroyEnvironment()
}

// imageToTensor resizes to the model's square input and lays pixels out
// channel-first, normalized to [0,1].
func (c *Client) imageToTensor(img image.Image) []float32 {
	target := uint(c.metadata.ImageSize)
	resized := resize.Resize(target, target, img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height := bounds.Max.X, bounds.Max.Y

	data := make([]float32, 3*width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			idx := y*width + x
			data[idx] = float32(r) / 65535.0
			data[width*height+idx] = float32(g) / 65535.0
			data[2*width*height+idx] = float32(b) / 65535.0
		}
	}
	return data
}

// scoresToPredictions maps per-class scores onto predictions, folding
// "___healthy" classes into the healthy flag instead of a disease.
func (c *Client) scoresToPredictions(scores []float32) ([]models.Prediction, bool) {
	type classScore struct {
		label string
		score float64
	}
	ranked := make([]classScore, 0, len(c.metadata.Classes))
	for i, label := range c.metadata.Classes {
		if i >= len(scores) {
			break
		}
		ranked = append(ranked, classScore{label: label, score: float64(scores[i])})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	healthy := len(ranked) > 0 && IsHealthyLabel(ranked[0].label)

	var preds []models.Prediction
	for _, cs := range ranked {
		if IsHealthyLabel(cs.label) {
			continue
		}
		// Raw model labels need disease-name inference; drop noise classes.
		if cs.score < 0.01 {
			continue
		}
		plant, id, name := ParseLabel(cs.label)
		desc := ""
		if plant != "" {
			desc = name + " detected on " + plant
		}
		preds = append(preds, models.Prediction{
			DiseaseID:   id,
			Name:        name,
			Confidence:  cs.score,
			Description: desc,
		})
	}
	providers.FillSeverity(preds)
	return preds, healthy
}

// IsHealthyLabel reports whether a raw class label marks a healthy leaf.
func IsHealthyLabel(label string) bool {
	return strings.Contains(strings.ToLower(label), "healthy")
}

// ParseLabel splits a PlantVillage-style label "Tomato___Late_blight"
// into the plant ("Tomato"), the canonical disease id ("late_blight")
// and a display name ("Late Blight").
func ParseLabel(label string) (plant, diseaseID, name string) {
	parts := strings.SplitN(label, "___", 2)
	raw := label
	if len(parts) == 2 {
		plant = strings.ReplaceAll(parts[0], "_", " ")
		raw = parts[1]
	}
	diseaseID = strings.ToLower(strings.Trim(strings.ReplaceAll(raw, " ", "_"), "_"))
	words := strings.Fields(strings.ReplaceAll(diseaseID, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	name = strings.Join(words, " ")
	return plant, diseaseID, name
}
