package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"bankruptcywatch/config"
	"bankruptcywatch/logging"
	"bankruptcywatch/ml"
	"bankruptcywatch/pipeline"
)

func main() {
	dataPath := flag.String("data", "", "dataset file (.xlsx or .csv)")
	charset := flag.String("charset", "", "csv charset label, utf-8 by default")
	modelName := flag.String("model", "logistic_regression", "logistic_regression or knn")
	k := flag.Int("k", 0, "neighbors for knn, 0 uses the configured default")
	out := flag.String("out", "", "write the trained model bundle to this path")
	bundle := flag.String("bundle", "", "score -predict with a saved bundle instead of training")
	predict := flag.String("predict", "", "comma separated feature values to score")
	configPath := flag.String("config", config.DefaultPath, "config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(config.LogConfig{Level: cfg.Log.Level})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if *bundle != "" {
		if err := scoreWithBundle(*bundle, *predict); err != nil {
			logger.Fatal("prediction failed", zap.Error(err))
		}
		return
	}

	if *dataPath == "" {
		log.Fatal("-data is required")
	}
	kind, err := ml.ParseModelKind(*modelName)
	if err != nil {
		log.Fatal(err)
	}

	p := pipeline.New(cfg.ML, logger)
	state, err := load(p, *dataPath, *charset, logger)
	if err != nil {
		logger.Fatal("failed to load dataset", zap.String("file", *dataPath), zap.Error(err))
	}

	state, output, err := p.Apply(state, pipeline.Train{Spec: ml.ModelSpec{Kind: kind, K: *k}})
	if err != nil {
		logger.Fatal("failed to train model", zap.Error(err))
	}
	printReport(output.Report)

	if *predict != "" {
		values, err := parseValues(*predict)
		if err != nil {
			log.Fatal(err)
		}
		_, output, err := p.Apply(state, pipeline.Predict{Values: values})
		if err != nil {
			logger.Fatal("prediction failed", zap.Error(err))
		}
		printPrediction(output.Prediction)
	}

	if *out != "" {
		if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
			log.Fatalf("failed to create model dir: %v", err)
		}
		if err := state.Model.Save(*out); err != nil {
			log.Fatalf("failed to save model: %v", err)
		}
		fmt.Printf("model saved to %s\n", *out)
	}
}

func load(p *pipeline.Pipeline, path, charset string, logger *zap.Logger) (pipeline.State, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.State{}, err
	}
	defer f.Close()

	table, err := pipeline.NewDataIngester(pipeline.IngestionConfig{}, logger).Load(filepath.Base(path), f, charset)
	if err != nil {
		return pipeline.State{}, err
	}
	state, output, err := p.Apply(pipeline.NewState(), pipeline.Upload{Source: path, Table: table})
	if err != nil {
		return state, err
	}
	up := output.Upload
	fmt.Printf("dataset %s: %d rows x %d cols, %d duplicates removed, %d rows kept\n",
		up.Source, up.RawRows, up.RawCols, up.DuplicatesRemoved, up.Rows)
	fmt.Printf("class counts: no bankruptcy=%d bankruptcy=%d\n", up.ClassCounts[0], up.ClassCounts[1])
	return state, nil
}

func scoreWithBundle(path, raw string) error {
	if raw == "" {
		return fmt.Errorf("-predict is required with -bundle")
	}
	model, err := ml.LoadModel(path)
	if err != nil {
		return err
	}
	values, err := parseValues(raw)
	if err != nil {
		return err
	}
	prediction, err := model.Predict(values)
	if err != nil {
		return err
	}
	fmt.Printf("features: %s\n", strings.Join(model.FeatureNames, ", "))
	printPrediction(prediction)
	return nil
}

func parseValues(raw string) ([]float64, error) {
	parts := strings.Split(raw, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid feature value %q", part)
		}
		values = append(values, v)
	}
	return values, nil
}

func printReport(r *ml.EvaluationReport) {
	fmt.Printf("model: %s %v\n", r.Model.DisplayName(), r.Params)
	fmt.Printf("train rows: %d, test rows: %d\n", r.TrainRows, r.TestRows)
	fmt.Printf("accuracy: %.4f\n", r.Accuracy)
	fmt.Printf("confusion matrix: %v\n", r.ConfusionMatrix)
	fmt.Printf("ROC-AUC: %s\n", r.ROCAUCText())
	fmt.Println(r.Text)
}

func printPrediction(p *ml.Prediction) {
	if p.HasConfidence {
		fmt.Printf("prediction: %s (confidence %.2f%%)\n", p.Label, p.Confidence*100)
		return
	}
	fmt.Printf("prediction: %s\n", p.Label)
}
