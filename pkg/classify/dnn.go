package classify

import (
	"image"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Config holds model settings.
type Config struct {
	// ModelDir is the directory holding the network file and labels.txt.
	ModelDir string

	// Model input size. Exported models in this project take 224x224.
	InputWidth  int
	InputHeight int
}

// DefaultConfig returns settings for a directory-exported 224x224 model.
func DefaultConfig(modelDir string) Config {
	return Config{
		ModelDir:    modelDir,
		InputWidth:  224,
		InputHeight: 224,
	}
}

// Model is a Classifier backed by OpenCV's DNN module.
type Model struct {
	net    gocv.Net
	labels []string
	cfg    Config
	mu     sync.Mutex // protects inference
}

// weightNames are the network files looked for inside a model directory,
// in preference order.
var weightNames = []string{"saved_model.pb", "model.onnx", "model.pb"}

// Load opens the model in the given directory. The directory must contain
// a network file and a labels.txt.
func Load(cfg Config) (*Model, error) {
	info, err := os.Stat(cfg.ModelDir)
	if err != nil {
		return nil, errors.Wrapf(err, "model directory %s", cfg.ModelDir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("model path %s is not a directory", cfg.ModelDir)
	}

	weights, err := findWeights(cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	labels, err := readLabels(filepath.Join(cfg.ModelDir, "labels.txt"))
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(weights, "")
	if net.Empty() {
		return nil, errors.Errorf("failed to load network from %s", weights)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set network backend")
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, errors.Wrap(err, "set network target")
	}

	return &Model{net: net, labels: labels, cfg: cfg}, nil
}

// findWeights locates the network file inside a model directory. Known
// filenames win; otherwise the first *.onnx or *.pb entry is used.
func findWeights(dir string) (string, error) {
	for _, name := range weightNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrapf(err, "read model directory %s", dir)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".onnx", ".pb":
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", errors.Errorf("no network file (*.pb, *.onnx) in %s", dir)
}

// Classify runs inference on one frame and returns the top prediction.
func (m *Model) Classify(img image.Image) (Prediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Center-crop resize to the model input size
	resized := imaging.Fill(img, m.cfg.InputWidth, m.cfg.InputHeight, imaging.Center, imaging.Lanczos)

	mat, err := gocv.ImageToMatRGB(resized)
	if err != nil {
		return Prediction{}, errors.Wrap(err, "convert frame")
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0,
		image.Pt(m.cfg.InputWidth, m.cfg.InputHeight),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	defer out.Close()

	scores := make([]float64, out.Total())
	for i := range scores {
		scores[i] = float64(out.GetFloatAt(0, i))
	}

	idx, conf, err := top(scores)
	if err != nil {
		return Prediction{}, err
	}
	if idx >= len(m.labels) {
		return Prediction{}, errors.Errorf("model produced %d outputs but labels.txt has %d labels", len(scores), len(m.labels))
	}

	return Prediction{Label: m.labels[idx], Confidence: conf}, nil
}

// Labels returns the model's labels in output order.
func (m *Model) Labels() []string {
	return m.labels
}

// Close releases the network.
func (m *Model) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}

// top returns the index and probability of the highest score. Raw logits
// are passed through softmax; outputs that already sum to one are used
// as-is so a trailing softmax layer is not applied twice.
func top(scores []float64) (int, float64, error) {
	if len(scores) == 0 {
		return 0, 0, errors.New("model produced no outputs")
	}

	probs := scores
	if !normalized(scores) {
		probs = softmax(scores)
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	return best, probs[best], nil
}

func normalized(scores []float64) bool {
	sum := 0.0
	for _, s := range scores {
		if s < 0 || s > 1 {
			return false
		}
		sum += s
	}
	return sum > 0.99 && sum < 1.01
}

func softmax(scores []float64) []float64 {
	max := scores[0]
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp(s - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
