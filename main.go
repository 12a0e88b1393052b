package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/scriptmaster/conceptgen/conceptgen"
)

// demoSchema is the small, self-contained schema the demo always builds
// its tables from, covering the kind of parametric object families the
// kernel targets. Config.SchemaPath and Config.StatsPath are not read.
var demoSchema = conceptgen.SchemaSource{
	Categories: []string{"Mug", "Box"},
	Templates: map[string]conceptgen.TemplateSpec{
		"Mug": {
			"CylinderBody": conceptgen.ParamSpec{
				"radius": []int{1},
				"height": []int{1},
			},
			"Handle": conceptgen.ParamSpec{
				"position":  []int{3},
				"curvature": []int{1},
			},
		},
		"Box": {
			"Cuboid": conceptgen.ParamSpec{
				"dimensions": []int{3},
			},
		},
	},
}

func main() {
	cfg := conceptgen.DefaultConfig()
	if cfgPath := os.Getenv("CONCEPTGEN_CONFIG_PATH"); cfgPath != "" {
		loaded, err := conceptgen.AutoConfig.FromPretrained(cfgPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = loaded
	}

	if cfg.OnnxModelPath != "" {
		if _, err := conceptgen.EnsureONNXRuntimeSharedLib(); err != nil {
			log.Fatal(err)
		}
	}

	assets := conceptgen.NewAssetStore(orDefault(cfg.AssetRepoID, "onnx-community/SmolLM-135M-ONNX"))

	tokenizerPath := cfg.TokenizerPath
	if tokenizerPath == "" {
		path, err := assets.Fetch("tokenizer.json")
		if err != nil {
			log.Fatal(err)
		}
		tokenizerPath = path
	}

	tok, err := conceptgen.AutoTokenizer.FromPretrained(tokenizerPath)
	if err != nil {
		log.Fatal(err)
	}

	paramNameEnd, err := tok.EncodeLiteral(`":`)
	if err != nil {
		log.Fatal(err)
	}
	schema, err := conceptgen.BuildSchema(demoSchema, tok, paramNameEnd, conceptgen.ArityPolicyMax)
	if err != nil {
		log.Fatal(err)
	}

	lit, err := conceptgen.BuildLiterals(tok, cfg.ValueTokenStart, cfg.NumBins)
	if err != nil {
		log.Fatal(err)
	}

	if err := conceptgen.CheckVocabularyCollision(tok.VocabSize(), schema, lit); err != nil {
		log.Fatal(err)
	}

	eosTokenID := cfg.EOSTokenID
	if eosTokenID < 0 {
		eosTokenID = tok.VocabSize() - 1
	}

	fsm := conceptgen.NewFSM(schema, lit, eosTokenID, cfg.PoseDigitCap)
	generator := conceptgen.NewGenerator(fsm, tok.VocabSize(), 4096)

	var step conceptgen.Stepper
	if cfg.OnnxModelPath != "" {
		step, err = conceptgen.NewOnnxStepper(cfg.OnnxModelPath, conceptgen.IOPresetSimpleCausal, eosTokenID)
		if err != nil {
			log.Fatal(err)
		}
	} else {
		greedy := conceptgen.NewGreedyStepper(tok.VocabSize(), eosTokenID)
		greedy.SeedLiteralPreamble(lit.WaitCode)
		step = greedy
	}

	prompt, err := conceptgen.RenderPrompt(assets, demoSchema.Categories, "")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(prompt)

	result, err := generator.Run(context.Background(), step)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(tok.Decode(result.Tokens))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
