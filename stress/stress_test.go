package stress

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"

	cfgpkg "typogen/internal/config"
	"typogen/internal/diag"
	"typogen/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var words = []string{"cheap", "flights", "hotel", "running", "shoes", "pizza", "delivery", "mortgage", "laptop", "weather", "recipes", "insurance"}

// writeLoad 生成 files 个 CSV，每个 rows 条 query。
func writeLoad(t *testing.T, dir string, files, rows int) {
	t.Helper()
	for f := 0; f < files; f++ {
		var b strings.Builder
		b.WriteString("Topic,Query\n")
		for i := 0; i < rows; i++ {
			fmt.Fprintf(&b, "T%d,%s %s\n", f, words[i%len(words)], words[(i*7+f)%len(words)])
		}
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("load-%02d.csv", f)), []byte(b.String()), 0o644); err != nil {
			t.Fatalf("write load: %v", err)
		}
	}
}

func baseConfig(input, outDir string) cfgpkg.Config {
	cfg := cfgpkg.DefaultTemplateConfig()
	cfg.Inputs = []string{input}
	cfg.Logging.Level = "error"
	cfg.Report = false
	cfg.Options.Writer = cfgpkg.RawOptions{"output_dir": outDir, "atomic": false}
	// 压测不受 provider 限额约束
	p := cfg.Provider["mock"]
	p.Limits = cfgpkg.Limits{}
	cfg.Provider["mock"] = p
	return cfg
}

// runPipeline 执行完整流水线并返回统计。
func runPipeline(cfg cfgpkg.Config) (diag.Snapshot, error) {
	comp, set, _, _, err := cfgpkg.Assemble(cfg)
	if err != nil {
		return diag.Snapshot{}, err
	}
	stats := &diag.Stats{}
	set.Stats = stats
	err = pipeline.Run(context.Background(), comp, set, nil)
	return stats.Snapshot(), err
}

// TestStress 在不同并发度下运行流水线并记录延迟统计。
func TestStress(t *testing.T) {
	if testing.Short() {
		t.Skip("stress")
	}
	const files, rows = 4, 250
	inDir := t.TempDir()
	writeLoad(t, inDir, files, rows)

	for _, mode := range []string{"rules", "llm"} {
		for _, conc := range []int{1, 8, 32} {
			t.Run(fmt.Sprintf("%s_concurrency_%d", mode, conc), func(t *testing.T) {
				const runs = 3
				latencies := make([]time.Duration, 0, runs)
				for i := 0; i < runs; i++ {
					outDir := t.TempDir()
					cfg := baseConfig(inDir, outDir)
					cfg.Mode = mode
					cfg.Concurrency = conc
					cfg.LLM = "mock"
					start := time.Now()
					snap, err := runPipeline(cfg)
					if err != nil {
						t.Fatalf("run %d: %v", i, err)
					}
					latencies = append(latencies, time.Since(start))
					if snap.Queries != files*rows {
						t.Fatalf("queries %d, want %d", snap.Queries, files*rows)
					}
					ents, err := os.ReadDir(outDir)
					if err != nil || len(ents) != files {
						t.Fatalf("outputs %d (%v), want %d", len(ents), err, files)
					}
				}
				sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
				var total time.Duration
				for _, d := range latencies {
					total += d
				}
				avg := total / time.Duration(len(latencies))
				idx := int(math.Ceil(float64(len(latencies))*0.95)) - 1
				if idx < 0 {
					idx = 0
				}
				t.Logf("%s 并发%d 平均%v 95%%延迟%v", mode, conc, avg, latencies[idx])
			})
		}
	}
}
