package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/litigraph/backend/internal/util"
	"github.com/litigraph/backend/pkg/ai"
	oai "github.com/litigraph/backend/pkg/ai/ollama"
	gai "github.com/litigraph/backend/pkg/ai/openai"
	"github.com/litigraph/backend/pkg/extract"
	"github.com/litigraph/backend/pkg/graph"
	"github.com/litigraph/backend/pkg/loader"
	"github.com/litigraph/backend/pkg/logger"
	"github.com/litigraph/backend/pkg/logger/console"
	"github.com/litigraph/backend/pkg/ocr"
	"github.com/litigraph/backend/pkg/workflow"
)

// ingest runs the batch pipeline directly on local files and prints the
// resulting report as JSON. Useful for one-off ingestions and debugging
// without the queue.
func main() {
	caseID := flag.String("case", "", "case identifier for this batch (required)")
	concurrency := flag.Int("concurrency", 4, "max files parsed at once")
	timeoutSec := flag.Int("timeout", 120, "per-file timeout in seconds, 0 for none")
	snapshotPath := flag.String("snapshot", "", "graph snapshot file to restore and update")
	useOCR := flag.Bool("ocr", false, "enable the OCR fallback for low-text pages")
	skipErrors := flag.Bool("skip-errors", true, "tolerate per-file failures instead of failing the batch")
	flag.Parse()

	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	if *caseID == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -case <id> [flags] <file>...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	paths := flag.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "no input files given")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var engine *ocr.Engine
	if *useOCR {
		engine = ocr.NewEngine(ocr.NewEngineParams{
			Client:        newVisionClient(),
			PrimaryModel:  util.GetEnv("OCR_PRIMARY_MODEL"),
			FallbackModel: util.GetEnv("OCR_FALLBACK_MODEL"),
			Preprocess:    util.GetEnvBool("OCR_PREPROCESS", true),
			Parallel:      util.GetEnvInt("OCR_PARALLEL", 2),
		})
	}

	builder := graph.NewBuilder()
	if *snapshotPath != "" {
		if data, err := os.ReadFile(*snapshotPath); err == nil {
			if err := builder.RestoreJSON(data); err != nil {
				logger.Fatal("Could not restore snapshot", "path", *snapshotPath, "err", err)
			}
		} else if !os.IsNotExist(err) {
			logger.Fatal("Could not read snapshot", "path", *snapshotPath, "err", err)
		}
	}

	w := workflow.NewWorkflow(workflow.NewWorkflowParams{
		CaseID: *caseID,
		Loader: loader.NewLoader(loader.NewLoaderParams{
			OCR:          engine,
			TokenEncoder: util.GetEnvString("TOKEN_ENCODER", "o200k_base"),
			SkipErrors:   *skipErrors,
		}),
		Extractor:      extract.NewExtractor(extract.NewExtractorParams{}),
		Graph:          builder,
		HashFile:       hashFile,
		MaxConcurrent:  *concurrency,
		TimeoutPerFile: time.Duration(*timeoutSec) * time.Second,
	})

	report, err := w.Run(ctx, paths)
	if err != nil {
		logger.Fatal("Batch failed", "err", err)
	}

	if *snapshotPath != "" {
		data, err := builder.ExportJSON()
		if err != nil {
			logger.Fatal("Could not export snapshot", "err", err)
		}
		if err := os.WriteFile(*snapshotPath, data, 0o600); err != nil {
			logger.Fatal("Could not write snapshot", "path", *snapshotPath, "err", err)
		}
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Fatal("Could not marshal report", "err", err)
	}
	fmt.Println(string(out))

	if report.Counts.Failed > 0 || report.Counts.Timeout > 0 {
		os.Exit(1)
	}
}

func newVisionClient() ai.VisionClient {
	if util.GetEnv("AI_ADAPTER") == "ollama" {
		client, err := oai.NewVisionOllamaClient(oai.NewVisionOllamaClientParams{
			BaseURL:               util.GetEnv("AI_VISION_URL"),
			ApiKey:                util.GetEnv("AI_VISION_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("AI_MAX_CONCURRENT", 2)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		return client
	}
	return gai.NewVisionOpenAIClient(gai.NewVisionOpenAIClientParams{
		BaseURL:               util.GetEnv("AI_VISION_URL"),
		ApiKey:                util.GetEnv("AI_VISION_KEY"),
		MaxConcurrentRequests: int64(util.GetEnvInt("AI_MAX_CONCURRENT", 2)),
	})
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
