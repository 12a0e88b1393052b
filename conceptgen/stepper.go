package conceptgen

import (
	"context"
	"errors"
	"fmt"

	onnx "github.com/yalue/onnxruntime_go"
)

// Stepper is the kernel's only model boundary (SPEC_FULL.md §6): given
// the tokens generated so far and the FSM's boolean mask for the next
// position, return that position's logits. Implementations own
// whatever batching, caching, or hardware dispatch they need; the FSM
// and Generator never see a model directly.
type Stepper interface {
	Step(ctx context.Context, ids []Token, mask []bool) ([]float32, error)
	EOSTokenID() Token
}

// applyMask overwrites every disallowed logit with a large finite
// negative sentinel (-1e30) rather than -Inf. A nil mask
// (a wait state with no recognition condition pending) leaves logits
// untouched.
func applyMask(logits []float32, mask []bool) {
	if mask == nil {
		return
	}
	const negInf = float32(-1e30)
	for i := range logits {
		if i >= len(mask) || !mask[i] {
			logits[i] = negInf
		}
	}
}

// OnnxStepper drives a real ONNX causal LM one token at a time, the
// teacher's generateSimpleCausal loop adapted to take its mask from
// the caller instead of sampling freely.
type OnnxStepper struct {
	session     *onnx.DynamicAdvancedSession
	ioPreset    IOPreset
	inputNames  []string
	outputNames []string
	inputInfo   map[string]onnx.InputOutputInfo
	eosTokenID  Token
}

// NewOnnxStepper loads an ONNX model file and wires its inputs per
// ioPreset (SPEC_FULL.md §4.4/§4.6).
func NewOnnxStepper(onnxPath string, ioPreset IOPreset, eosTokenID Token) (*OnnxStepper, error) {
	if err := onnx.InitializeEnvironment(onnx.WithLogLevelWarning()); err != nil {
		return nil, fmt.Errorf("InitializeEnvironment: %w", err)
	}

	inInfos, _, err := onnx.GetInputOutputInfo(onnxPath)
	if err != nil {
		return nil, fmt.Errorf("GetInputOutputInfo: %w", err)
	}
	inputInfo := make(map[string]onnx.InputOutputInfo, len(inInfos))
	for _, info := range inInfos {
		inputInfo[info.Name] = info
	}

	s := &OnnxStepper{ioPreset: ioPreset, inputInfo: inputInfo, eosTokenID: eosTokenID}
	if err := s.resolveIONames(onnxPath); err != nil {
		return nil, err
	}

	sess, err := onnx.NewDynamicAdvancedSession(onnxPath, s.inputNames, s.outputNames, nil)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}
	s.session = sess
	return s, nil
}

func (s *OnnxStepper) EOSTokenID() Token { return s.eosTokenID }

// Step runs one forward pass over ids and returns the masked logits
// for the next position. ctx is checked before the (blocking) ONNX
// call so a cancelled generation never starts a step it can't use
// (SPEC_FULL.md §5).
func (s *OnnxStepper) Step(ctx context.Context, ids []Token, mask []bool) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	curIDs := make([]int64, len(ids))
	curMask := make([]int64, len(ids))
	for i, id := range ids {
		curIDs[i] = int64(id)
		curMask[i] = 1
	}

	inputTensor, err := tensorFromInt64s(curIDs, []int64{1, int64(len(curIDs))})
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer inputTensor.Destroy()
	maskTensor, err := tensorFromInt64s(curMask, []int64{1, int64(len(curMask))})
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := make([]onnx.Value, len(s.inputNames))
	var toDestroy []onnx.Value
	for i, name := range s.inputNames {
		switch name {
		case "input_ids":
			inputs[i] = inputTensor
		case "attention_mask":
			inputs[i] = maskTensor
		case "position_ids":
			pos := make([]int64, len(curIDs))
			for j := range pos {
				pos[j] = int64(j)
			}
			t, err := tensorFromInt64s(pos, []int64{1, int64(len(pos))})
			if err != nil {
				for _, v := range toDestroy {
					v.Destroy()
				}
				return nil, fmt.Errorf("create position_ids tensor: %w", err)
			}
			inputs[i] = t
			toDestroy = append(toDestroy, t)
		default:
			t, err := s.zeroTensorForInput(name, len(curIDs))
			if err != nil {
				for _, v := range toDestroy {
					v.Destroy()
				}
				return nil, err
			}
			inputs[i] = t
			toDestroy = append(toDestroy, t)
		}
	}
	defer func() {
		for _, v := range toDestroy {
			v.Destroy()
		}
	}()

	outputs := make([]onnx.Value, len(s.outputNames))
	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx Run: %w", err)
	}

	var logitsTensor *onnx.Tensor[float32]
	for i, name := range s.outputNames {
		if name != "logits" {
			if outputs[i] != nil {
				_ = outputs[i].Destroy()
			}
			continue
		}
		val := outputs[i]
		if val == nil {
			return nil, errors.New("onnx output 'logits' missing")
		}
		t, ok := val.(*onnx.Tensor[float32])
		if !ok {
			return nil, errors.New("onnx 'logits' is not a float32 Tensor")
		}
		logitsTensor = t
	}
	if logitsTensor == nil {
		return nil, errors.New("onnx output 'logits' missing")
	}
	defer logitsTensor.Destroy()

	raw := logitsTensor.GetData()
	shape := logitsTensor.GetShape()
	if len(shape) != 3 {
		return nil, fmt.Errorf("unexpected logits shape: %v", shape)
	}
	vocabSize := int(shape[2])
	start := (len(curIDs) - 1) * vocabSize
	logits := append([]float32(nil), raw[start:start+vocabSize]...)

	applyMask(logits, mask)
	return logits, nil
}

func (s *OnnxStepper) zeroTensorForInput(name string, seqLen int) (onnx.Value, error) {
	info, ok := s.inputInfo[name]
	if !ok {
		return nil, fmt.Errorf("Step: unsupported input name %q", name)
	}
	shape := make([]int64, len(info.Dimensions))
	for i, d := range info.Dimensions {
		if d <= 0 {
			shape[i] = 1
			if i == len(info.Dimensions)-1 && seqLen > 0 {
				shape[i] = int64(seqLen)
			}
		} else {
			shape[i] = d
		}
	}

	count := int64(1)
	for _, d := range shape {
		count *= d
	}
	switch info.DataType {
	case onnx.TensorElementDataTypeInt64:
		return tensorFromInt64s(make([]int64, count), shape)
	default:
		return tensorFromFloat32s(make([]float32, count), shape)
	}
}

// GreedyStepper is an in-memory Stepper for tests and the demo
// entrypoint: it reads its logits from a scripted table keyed by step
// index, falling back to uniform logits once the table is exhausted.
// Because Step applies the FSM's mask before returning, greedy
// argmax over the result always lands on an allowed token regardless
// of the scripted values, making this useful for exercising the FSM
// without a real model.
type GreedyStepper struct {
	Scripted   [][]float32
	vocabSize  int
	eosTokenID Token
}

// NewGreedyStepper builds a stepper over vocabSize-wide uniform logits.
func NewGreedyStepper(vocabSize, eosTokenID int) *GreedyStepper {
	return &GreedyStepper{vocabSize: vocabSize, eosTokenID: eosTokenID}
}

func (g *GreedyStepper) EOSTokenID() Token { return g.eosTokenID }

// SeedLiteralPreamble scripts tokens as the highest-logit choice for
// the first len(tokens) steps, then leaves the rest of the stream to
// GreedyStepper's normal masked-uniform fallback. Without a real model
// behind WAIT_CODE's free-text recognition state, nothing would ever
// emit the literal tail the FSM is waiting for; this is how the demo
// entrypoint and the generator tests drive a stepper-less stream
// past WAIT_CODE deterministically.
func (g *GreedyStepper) SeedLiteralPreamble(tokens []Token) {
	g.Scripted = make([][]float32, len(tokens))
	for i, tok := range tokens {
		logits := make([]float32, g.vocabSize)
		logits[tok] = 1
		g.Scripted[i] = logits
	}
}

func (g *GreedyStepper) Step(ctx context.Context, ids []Token, mask []bool) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step := len(ids)
	var logits []float32
	if step < len(g.Scripted) {
		logits = append([]float32(nil), g.Scripted[step]...)
	} else {
		size := len(mask)
		if size == 0 {
			size = g.vocabSize
		}
		logits = make([]float32, size)
	}
	applyMask(logits, mask)
	return logits, nil
}
