package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	// DefaultSeqLen covers every video title and search query we embed.
	DefaultSeqLen = 128
	// DefaultHiddenSize is the output width of all-MiniLM-L6-v2.
	DefaultHiddenSize = 384
)

// ONNXConfig locates the model bundle.
type ONNXConfig struct {
	// ModelDir holds model.onnx and vocab.txt (or tokenizer/vocab.txt).
	ModelDir string
	// LibraryPath is the onnxruntime shared library. Empty means probe the
	// usual install locations.
	LibraryPath string
	SeqLen      int
	HiddenSize  int
}

// ONNX is a sentence embedder backed by an onnxruntime session. Inference is
// serialised on one set of pre-allocated tensors.
type ONNX struct {
	session   *ort.AdvancedSession
	tokenizer *WordPieceTokenizer
	seqLen    int
	hidden    int

	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu sync.Mutex
}

// LoadONNX initialises the runtime, the tokenizer and the session.
func LoadONNX(cfg ONNXConfig) (*ONNX, error) {
	if strings.TrimSpace(cfg.ModelDir) == "" {
		return nil, errors.New("embed: model dir is empty")
	}
	if cfg.SeqLen <= 0 {
		cfg.SeqLen = DefaultSeqLen
	}
	if cfg.HiddenSize <= 0 {
		cfg.HiddenSize = DefaultHiddenSize
	}

	libPath := cfg.LibraryPath
	if libPath == "" {
		libPath = resolveSharedLibraryPath(cfg.ModelDir)
	}
	if libPath == "" {
		return nil, errors.New("embed: onnxruntime shared library not found; set ONNXRUNTIME_LIB")
	}
	ort.SetSharedLibraryPath(libPath)
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("embed: initialize onnxruntime: %w", err)
		}
	}

	modelPath := filepath.Join(cfg.ModelDir, "model.onnx")
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("embed: model file missing at %s: %w", modelPath, err)
	}

	vocabPath := filepath.Join(cfg.ModelDir, "vocab.txt")
	if _, err := os.Stat(vocabPath); err != nil {
		vocabPath = filepath.Join(cfg.ModelDir, "tokenizer", "vocab.txt")
	}
	tokenizer, err := LoadWordPieceTokenizer(vocabPath)
	if err != nil {
		return nil, err
	}

	inputShape := ort.NewShape(1, int64(cfg.SeqLen))
	inputIDs, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("embed: allocate input_ids tensor: %w", err)
	}
	attnMask, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("embed: allocate attention_mask tensor: %w", err)
	}
	tokenTypes, err := ort.NewEmptyTensor[int64](inputShape)
	if err != nil {
		return nil, fmt.Errorf("embed: allocate token_type_ids tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.SeqLen), int64(cfg.HiddenSize)))
	if err != nil {
		return nil, fmt.Errorf("embed: allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		[]ort.Value{inputIDs, attnMask, tokenTypes},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("embed: create onnx session: %w", err)
	}

	return &ONNX{
		session:       session,
		tokenizer:     tokenizer,
		seqLen:        cfg.SeqLen,
		hidden:        cfg.HiddenSize,
		inputIDs:      inputIDs,
		attentionMask: attnMask,
		tokenTypeIDs:  tokenTypes,
		output:        output,
	}, nil
}

// Embed returns the L2-normalised mean of the token vectors selected by the
// attention mask.
func (m *ONNX) Embed(ctx context.Context, text string) ([]float32, error) {
	if m == nil || m.session == nil {
		return nil, errors.New("embed: onnx model not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, attn := m.tokenizer.Encode(text, m.seqLen)

	m.mu.Lock()
	defer m.mu.Unlock()

	copy(m.inputIDs.GetData(), ids)
	copy(m.attentionMask.GetData(), attn)
	clear(m.tokenTypeIDs.GetData())

	if err := m.session.Run(); err != nil {
		return nil, fmt.Errorf("embed: onnx run: %w", err)
	}

	return meanPool(m.output.GetData(), attn, m.hidden), nil
}

// Close releases the session and its tensors.
func (m *ONNX) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.session != nil {
		errs = append(errs, m.session.Destroy())
		m.session = nil
	}
	for _, t := range []interface{ Destroy() error }{m.inputIDs, m.attentionMask, m.tokenTypeIDs, m.output} {
		errs = append(errs, t.Destroy())
	}
	return errors.Join(errs...)
}

// meanPool averages the rows of hidden ([seqLen][width], flattened) whose
// mask entry is set, then scales the result to unit length.
func meanPool(hidden []float32, mask []int64, width int) []float32 {
	out := make([]float32, width)
	var n float32
	for i, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[i*width : (i+1)*width]
		for j, v := range row {
			out[j] += v
		}
		n++
	}
	if n == 0 {
		return out
	}

	var norm float64
	for j := range out {
		out[j] /= n
		norm += float64(out[j]) * float64(out[j])
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return out
	}
	for j := range out {
		out[j] = float32(float64(out[j]) / norm)
	}
	return out
}

// resolveSharedLibraryPath probes common names and locations for the
// onnxruntime shared library.
func resolveSharedLibraryPath(modelDir string) string {
	names := []string{
		"libonnxruntime.so",
		"onnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		"/opt/homebrew/lib",
		"/usr/local/lib",
		"/usr/lib",
	}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}
