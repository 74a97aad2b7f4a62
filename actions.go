package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/czcorpus/attrisim/apiserver"
	"github.com/czcorpus/attrisim/cnf"
	"github.com/czcorpus/attrisim/dataimport"
	"github.com/czcorpus/attrisim/eval"
	"github.com/czcorpus/attrisim/eval/modutils"
	"github.com/czcorpus/attrisim/index"
	"github.com/czcorpus/attrisim/metrics"
	"github.com/czcorpus/attrisim/prediction"
	"github.com/czcorpus/attrisim/risk"
	"github.com/czcorpus/attrisim/stats"
	"github.com/dgraph-io/badger/v4"
	"github.com/fatih/color"
	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
)

const (
	errColor = color.FgHiRed
	okColor  = color.FgHiGreen

	lastHRISImportKey = "lastHRISImport"
)

func openEmployeesDB(conf *cnf.Conf) *stats.Database {
	db, err := stats.NewDatabase(conf.EmployeesDBPath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenDB)
	}
	if err := db.Init(); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenDB)
	}
	return db
}

func openModelStore(conf *cnf.Conf) *index.DB {
	store, err := index.OpenDB(conf.ModelStorePath)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenModelStore)
	}
	return store
}

func newEngine(
	conf *cnf.Conf,
	db *stats.Database,
	store *index.DB,
	mm *metrics.Manager,
) *prediction.Engine {
	factory, loader, err := eval.GetModelType(conf.ModelType, conf.NumTrees)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorInvalidConfig)
	}
	trainer := eval.NewTrainer(
		store,
		*conf.LabelThresholds,
		eval.WithModel(factory, loader),
		eval.WithArtifactKey(conf.ModelArtifactKey),
		eval.WithMetrics(mm),
	)
	return prediction.NewEngine(
		db,
		trainer,
		prediction.WithHistory(db),
		prediction.WithMetrics(mm),
		prediction.WithCostModel(conf.CostModel()),
	)
}

func printStatus(status eval.Status) {
	color.New(okColor).Fprintf(os.Stderr, "model %s: %s\n", status.Source, status.Message)
	if status.ModelInfo != "" {
		fmt.Fprintln(os.Stderr, status.ModelInfo)
	}
	if status.Agreement != nil {
		fmt.Fprintf(os.Stderr, "agreement with rule labels: %s\n", status.Agreement)
	}
	for _, d := range status.Disagreements {
		fmt.Fprintf(
			os.Stderr, "  %s employee %d: ML output %01.2f, label %d\n",
			d.Type, d.EmployeeID, d.MLOutput, d.Label)
	}
}

func runActionServer(conf *cnf.Conf, version apiserver.VersionInfo) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openEmployeesDB(conf)
	defer db.Close()
	store := openModelStore(conf)
	defer store.Close()

	mm := metrics.NewManager()
	engine := newEngine(conf, db, store, mm)
	records, err := db.GetAllEmployees(ctx)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorFailedToOpenDB)
	}
	if _, err := engine.TrainOrReload(ctx, records); err != nil {
		// the server still provides the rule-based results
		log.Error().Err(err).Msg("failed to install model, ML probabilities will be zero")
	}
	apiserver.Run(ctx, conf, engine, db, mm, version)
}

func toEmployeeRows(conf *cnf.Conf, records []risk.EmployeeRecord) ([]stats.EmployeeRow, error) {
	costModel := conf.CostModel()
	bar := progressbar.Default(int64(len(records)), "evaluating rules")
	ans := make([]stats.EmployeeRow, len(records))
	for i, rec := range records {
		a, err := risk.Evaluate(rec, *conf.DefaultThresholds)
		if err != nil {
			return []stats.EmployeeRow{}, fmt.Errorf("failed to evaluate employee %d: %w", rec.ID, err)
		}
		ans[i] = stats.EmployeeRow{
			EmployeeRecord: rec,
			Snapshot: stats.RuleSnapshot{
				RiskScore:     a.RiskScore,
				RiskFactors:   a.RiskFactors,
				AttritionCost: costModel.AttritionCost(rec),
			},
		}
		bar.Add(1)
	}
	return ans, nil
}

func runActionImport(conf *cnf.Conf, srcPath string, replaceAll bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openEmployeesDB(conf)
	defer db.Close()

	collector := &dataimport.ValidatingCollector{}
	if err := dataimport.ReadEmployeesFile(ctx, srcPath, collector); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorImportFailed)
	}
	log.Info().
		Int("numProcessed", collector.NumProcessed).
		Int("numFailed", collector.NumFailed).
		Str("file", srcPath).
		Msg("read employees file")

	rows, err := toEmployeeRows(conf, collector.Records)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorImportFailed)
	}
	if err := db.ImportEmployees(rows, replaceAll); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorImportFailed)
	}
	reportImport(db, rows)
}

func reportImport(db *stats.Database, rows []stats.EmployeeRow) {
	var exposure float64
	for _, row := range rows {
		exposure += row.Snapshot.AttritionCost
	}
	total, err := db.CountEmployees()
	if err != nil {
		log.Warn().Err(err).Msg("failed to count stored employees")
	}
	color.New(okColor).Fprintf(
		os.Stderr,
		"imported %d employees (total stored: %d, attrition exposure: %s)\n",
		len(rows), total, modutils.FormatRoughAmount(exposure),
	)
}

func runActionHRISImport(conf *cnf.Conf, replaceAll bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if conf.HRISImport == nil {
		color.New(errColor).Fprintln(os.Stderr, "missing hrisImport configuration")
		os.Exit(exitErrorInvalidConfig)
	}
	db := openEmployeesDB(conf)
	defer db.Close()
	store := openModelStore(conf)
	defer store.Close()

	lastImport, err := store.ReadTimestamp(lastHRISImportKey)
	if err == nil {
		log.Info().Time("lastImport", lastImport).Msg("found previous HRIS import")

	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		log.Warn().Err(err).Msg("failed to read previous HRIS import time")
	}

	src, err := dataimport.NewHRISSource(*conf.HRISImport)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorImportFailed)
	}
	defer src.Close()
	ch, err := src.ImportEmployees(ctx)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorImportFailed)
	}
	collector := &dataimport.ValidatingCollector{}
	var numProcessed, numFailed int
	for item := range ch {
		if item.Error != nil {
			color.New(errColor).Fprintln(os.Stderr, item.Error)
			os.Exit(exitErrorImportFailed)
		}
		numProcessed++
		if err := collector.ProcessRecord(item.EmployeeRecord); err != nil {
			log.Warn().Err(err).Int("employeeId", item.ID).Msg("skipping invalid HRIS record")
			numFailed++
		}
	}
	collector.SetStats(numProcessed, numFailed)

	rows, err := toEmployeeRows(conf, collector.Records)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorImportFailed)
	}
	if err := db.ImportEmployees(rows, replaceAll); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorImportFailed)
	}
	if err := store.StoreTimestamp(lastHRISImportKey, time.Now()); err != nil {
		log.Warn().Err(err).Msg("failed to store HRIS import time")
	}
	if numFailed > 0 {
		log.Warn().Int("numFailed", numFailed).Msg("some HRIS records were skipped")
	}
	reportImport(db, rows)
}

func runActionTrain(conf *cnf.Conf, force bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openEmployeesDB(conf)
	defer db.Close()
	store := openModelStore(conf)
	defer store.Close()

	engine := newEngine(conf, db, store, nil)
	var status eval.Status
	var err error
	if force {
		status, err = engine.RetrainFromSource(ctx)

	} else {
		var records []risk.EmployeeRecord
		records, err = db.GetAllEmployees(ctx)
		if err == nil {
			status, err = engine.TrainOrReload(ctx, records)
		}
	}
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorTrainingFailed)
	}
	printStatus(status)
}

func runActionScore(conf *cnf.Conf, department, outPath string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := openEmployeesDB(conf)
	defer db.Close()
	store := openModelStore(conf)
	defer store.Close()

	engine := newEngine(conf, db, store, nil)
	allRecords, err := db.GetAllEmployees(ctx)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorScoringFailed)
	}
	if _, err := engine.TrainOrReload(ctx, allRecords); err != nil {
		log.Error().Err(err).Msg("failed to install model, ML probabilities will be zero")
	}

	records := allRecords
	if department != "" {
		records, err = db.ListEmployees(ctx, stats.ListFilter{}.SetDepartment(department))
		if err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorScoringFailed)
		}
	}
	results, err := engine.HybridForAll(records, *conf.DefaultThresholds)
	if err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorScoringFailed)
	}

	var out io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			color.New(errColor).Fprintln(os.Stderr, err)
			os.Exit(exitErrorScoringFailed)
		}
		defer f.Close()
		out = f
	}
	if err := gocsv.Marshal(results, out); err != nil {
		color.New(errColor).Fprintln(os.Stderr, err)
		os.Exit(exitErrorScoringFailed)
	}
}
