package media

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"os"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"
)

// ImageNet normalization constants for torchvision-trained models.
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

const (
	labelInputWidth  = 224
	labelInputHeight = 224
)

// ONNXLabeler runs a local image-classification model (MobileNetV2 layout)
// and returns the top-k class names as metadata labels. The model, class
// names and ONNX runtime library are all loaded lazily on first use.
type ONNXLabeler struct {
	mu sync.Mutex

	modelPath string
	namesPath string
	libPath   string
	topK      int

	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	names   []string
	inited  bool
}

func NewONNXLabeler(modelPath, namesPath, libPath string, topK int) *ONNXLabeler {
	if topK <= 0 {
		topK = 5
	}
	return &ONNXLabeler{
		modelPath: modelPath,
		namesPath: namesPath,
		libPath:   libPath,
		topK:      topK,
	}
}

func (l *ONNXLabeler) initOnce() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inited {
		return nil
	}

	if l.libPath != "" {
		ort.SetSharedLibraryPath(l.libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("onnx init environment failed: %w", err)
	}

	names, err := loadClassNames(l.namesPath)
	if err != nil {
		return fmt.Errorf("load class names failed: %w", err)
	}
	l.names = names

	inputs, outputs, err := ort.GetInputOutputInfo(l.modelPath)
	if err != nil {
		return fmt.Errorf("onnx model info failed: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	inputTensor, err := ort.NewEmptyTensor[float32](inputs[0].Dimensions)
	if err != nil {
		return fmt.Errorf("onnx input tensor failed: %w", err)
	}
	outputTensor, err := ort.NewEmptyTensor[float32](outputs[0].Dimensions)
	if err != nil {
		inputTensor.Destroy()
		return fmt.Errorf("onnx output tensor failed: %w", err)
	}

	inputNames := make([]string, len(inputs))
	for i := range inputs {
		inputNames[i] = inputs[i].Name
	}
	outputNames := make([]string, len(outputs))
	for i := range outputs {
		outputNames[i] = outputs[i].Name
	}

	session, err := ort.NewAdvancedSession(l.modelPath, inputNames, outputNames,
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		outputTensor.Destroy()
		inputTensor.Destroy()
		return fmt.Errorf("onnx session failed: %w", err)
	}

	l.input = inputTensor
	l.output = outputTensor
	l.session = session
	l.inited = true
	return nil
}

// DetectLabels decodes and preprocesses the image, runs inference and returns
// the top-k class names sorted by score.
func (l *ONNXLabeler) DetectLabels(data []byte) ([]string, error) {
	if err := l.initOnce(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image failed: %w", err)
	}
	tensor := preprocessLabelInput(img)

	l.mu.Lock()
	in := l.input.GetData()
	if len(in) < len(tensor) {
		l.mu.Unlock()
		return nil, fmt.Errorf("input tensor size %d < preprocessed %d", len(in), len(tensor))
	}
	copy(in, tensor)
	runErr := l.session.Run()
	var scores []float32
	if runErr == nil {
		out := l.output.GetData()
		scores = make([]float32, len(out))
		copy(scores, out)
	}
	l.mu.Unlock()
	if runErr != nil {
		return nil, fmt.Errorf("onnx run failed: %w", runErr)
	}

	return l.topNames(scores), nil
}

func (l *ONNXLabeler) topNames(scores []float32) []string {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	k := l.topK
	if k > len(idx) {
		k = len(idx)
	}
	names := make([]string, 0, k)
	for i := 0; i < k; i++ {
		if idx[i] < len(l.names) {
			names = append(names, l.names[idx[i]])
		}
	}
	return names
}

func loadClassNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			names = append(names, name)
		}
	}
	return names, sc.Err()
}

// preprocessLabelInput resizes to 224x224 RGB and lays the pixels out in
// NCHW float32 with ImageNet normalization.
func preprocessLabelInput(img image.Image) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, labelInputWidth, labelInputHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	const size = labelInputWidth * labelInputHeight
	out := make([]float32, 3*size)
	for y := 0; y < labelInputHeight; y++ {
		for x := 0; x < labelInputWidth; x++ {
			idx := y*labelInputWidth + x
			c := dst.RGBAAt(x, y)
			r, g, b := float32(c.R)/255.0, float32(c.G)/255.0, float32(c.B)/255.0
			out[0*size+idx] = (r - imagenetMean[0]) / imagenetStd[0]
			out[1*size+idx] = (g - imagenetMean[1]) / imagenetStd[1]
			out[2*size+idx] = (b - imagenetMean[2]) / imagenetStd[2]
		}
	}
	return out
}
