package conceptgen

import (
	"fmt"

	onnx "github.com/yalue/onnxruntime_go"
)

// IOPreset describes how OnnxStepper wires a model's inputs/outputs.
type IOPreset int

const (
	// IOPresetAuto falls back to GetInputOutputInfo on the model file.
	IOPresetAuto IOPreset = iota

	// IOPresetSimpleCausal: [input_ids, attention_mask] -> [logits].
	// The kernel drives the model one token at a time with no KV
	// cache, since every step's allowed set is recomputed from the
	// FSM anyway and the corpus's generations are short (a handful of
	// templates with a handful of parameters each).
	IOPresetSimpleCausal
)

// resolveIONames sets s.inputNames and s.outputNames based on s.ioPreset.
func (s *OnnxStepper) resolveIONames(onnxPath string) error {
	switch s.ioPreset {
	case IOPresetSimpleCausal:
		s.inputNames, s.outputNames = []string{"input_ids", "attention_mask"}, []string{"logits"}
		return nil
	case IOPresetAuto:
		fallthrough
	default:
		in, out, err := discoverIONamesFromModel(onnxPath)
		if err != nil {
			return err
		}
		s.inputNames = in
		s.outputNames = out
		return nil
	}
}

// discoverIONamesFromModel introspects the ONNX model to get input/output names.
func discoverIONamesFromModel(onnxPath string) ([]string, []string, error) {
	if onnxPath == "" {
		return nil, nil, fmt.Errorf("discoverIONamesFromModel: onnxPath is empty")
	}

	inputInfos, outputInfos, err := onnx.GetInputOutputInfo(onnxPath)
	if err != nil {
		return nil, nil, fmt.Errorf("discoverIONamesFromModel: %w", err)
	}

	inputs := make([]string, 0, len(inputInfos))
	for _, info := range inputInfos {
		inputs = append(inputs, info.Name)
	}

	outputs := make([]string, 0, len(outputInfos))
	for _, info := range outputInfos {
		outputs = append(outputs, info.Name)
	}

	return inputs, outputs, nil
}
