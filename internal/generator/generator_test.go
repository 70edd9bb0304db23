package generator

import (
	"context"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDefaultModelValidates(t *testing.T) {
	if err := DefaultModel().Validate(); err != nil {
		t.Fatalf("default model invalid: %v", err)
	}
}

func TestGenerateLabelsRowsAndCoversColumns(t *testing.T) {
	gen, err := Load("")
	if err != nil {
		t.Fatalf("load default model: %v", err)
	}

	rows, err := gen.Generate(context.Background(), rand.New(rand.NewSource(7)), 1, 25)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(rows) != 25 {
		t.Fatalf("expected 25 rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row[ColumnClass] != 1 {
			t.Fatalf("expected class 1, got %v", row[ColumnClass])
		}
		for _, name := range FeatureColumns {
			if _, ok := row[name]; !ok {
				t.Fatalf("row missing column %s", name)
			}
		}
		amount := row[ColumnAmount]
		if amount < 0 || amount > 25691.16 {
			t.Fatalf("amount %v outside clamp range", amount)
		}
	}
}

func TestGenerateIsDeterministicForSeed(t *testing.T) {
	gen, err := Load("")
	if err != nil {
		t.Fatalf("load default model: %v", err)
	}

	first, err := gen.Generate(context.Background(), rand.New(rand.NewSource(99)), 0, 10)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := gen.Generate(context.Background(), rand.New(rand.NewSource(99)), 0, 10)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical rows for identical seeds")
	}
}

func TestGenerateRespectsCancellation(t *testing.T) {
	gen, err := Load("")
	if err != nil {
		t.Fatalf("load default model: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = gen.Generate(ctx, rand.New(rand.NewSource(1)), 0, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGenerateRejectsUnknownClass(t *testing.T) {
	gen, err := Load("")
	if err != nil {
		t.Fatalf("load default model: %v", err)
	}
	if _, err := gen.Generate(context.Background(), rand.New(rand.NewSource(1)), 2, 1); err == nil {
		t.Fatalf("expected error for class 2")
	}
}

func TestLoadModelFromYAML(t *testing.T) {
	var b strings.Builder
	b.WriteString("name: tiny\nclasses:\n")
	for _, label := range []string{"0", "1"} {
		b.WriteString("  " + label + ":\n    columns:\n")
		for _, name := range FeatureColumns {
			b.WriteString("      " + name + ": {mean: 0, stddev: 0}\n")
		}
		b.WriteString("      Amount: {mean: 10, stddev: 0, round: 2}\n")
	}

	path := filepath.Join(t.TempDir(), "model.yaml")
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}

	gen, err := Load(path)
	if err != nil {
		t.Fatalf("load model: %v", err)
	}
	if gen.Name() != "tiny" {
		t.Fatalf("expected model name tiny, got %s", gen.Name())
	}

	rows, err := gen.Generate(context.Background(), rand.New(rand.NewSource(1)), 0, 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if rows[0][ColumnAmount] != 10 || rows[0]["V3"] != 0 {
		t.Fatalf("expected degenerate distributions to return their mean, got %v", rows[0])
	}
}

func TestLoadModelRejectsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	data := "name: broken\nclasses:\n  0:\n    columns:\n      V1: {mean: 0, stddev: 1}\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}

	if _, err := LoadModel(path); err == nil {
		t.Fatalf("expected validation error for incomplete model")
	}
}
