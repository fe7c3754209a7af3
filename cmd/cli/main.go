// KeBiao 命令行排课
// 从 CSV 目录读取课程、教师、教室，运行一次排课并导出 CSV

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kebiao/kebiao/internal/constraints"
	"github.com/kebiao/kebiao/internal/csvio"
	"github.com/kebiao/kebiao/pkg/engine"
	"github.com/kebiao/kebiao/pkg/logger"
	"github.com/kebiao/kebiao/pkg/scheduler/optimizer"
	"github.com/kebiao/kebiao/pkg/scheduler/solver"
)

type options struct {
	files       csvio.Files
	delim       string
	algorithm   string
	greedyMode  string
	seed        int64
	seedSet     bool
	timeout     time.Duration
	generations int
	population  int
	out         string
	conflicts   string
	unplaced    string
	summary     string
	constraints string
	logLevel    string
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("kebiao", flag.ContinueOnError)
	fs.StringVar(&o.files.Subjects, "subjects", "subjects.csv", "课程 CSV")
	fs.StringVar(&o.files.Teachers, "teachers", "", "教师 CSV（可选）")
	fs.StringVar(&o.files.Rooms, "rooms", "rooms.csv", "教室 CSV")
	fs.StringVar(&o.files.Slots, "slots", "", "时段 CSV（可选，默认周一至周五每天4节）")
	fs.StringVar(&o.delim, "delim", ",", "CSV 分隔符")
	fs.StringVar(&o.algorithm, "algorithm", "genetic", "算法: greedy, genetic, constraint")
	fs.StringVar(&o.greedyMode, "greedy-mode", "first_fit", "贪心模式: first_fit, random")
	fs.Int64Var(&o.seed, "seed", 0, "随机种子，未指定时使用时间种子")
	fs.DurationVar(&o.timeout, "timeout", 30*time.Second, "运行超时，0 表示不限")
	fs.IntVar(&o.generations, "generations", 0, "遗传算法代数")
	fs.IntVar(&o.population, "population", 0, "遗传算法种群规模")
	fs.StringVar(&o.out, "out", "timetable.csv", "课表输出文件")
	fs.StringVar(&o.conflicts, "conflicts", "", "冲突输出文件（可选）")
	fs.StringVar(&o.unplaced, "unplaced", "", "未安排课时输出文件（可选）")
	fs.StringVar(&o.summary, "summary", "", "JSON 结果摘要输出文件（可选）")
	fs.StringVar(&o.constraints, "constraints", "", `约束参数 JSON，如 {"room_conflict_penalty":80}`)
	fs.StringVar(&o.logLevel, "log-level", "warn", "日志级别")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			o.seedSet = true
		}
	})

	runes := []rune(o.delim)
	if len(runes) != 1 {
		return nil, fmt.Errorf("分隔符必须为单个字符: %q", o.delim)
	}
	return o, nil
}

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = o.logLevel
	logCfg.Format = "console"
	logCfg.Output = "stderr"
	logger.Init(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o *options, stdout io.Writer) error {
	delim := []rune(o.delim)[0]

	cat, err := csvio.LoadCatalog(o.files, delim)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "已读取 %d 门课程, %d 位教师, %d 间教室\n", len(cat.Subjects), len(cat.Teachers), len(cat.Rooms))

	req, err := buildRequest(o, cat)
	if err != nil {
		return err
	}

	result, err := engine.New().Run(ctx, req)
	if err != nil {
		return err
	}

	if err := csvio.WriteFile(o.out, func(w io.Writer) error {
		return csvio.WriteTimetable(w, result.Assignments, delim)
	}); err != nil {
		return err
	}
	if o.conflicts != "" {
		if err := csvio.WriteFile(o.conflicts, func(w io.Writer) error {
			return csvio.WriteConflicts(w, result.Conflicts, delim)
		}); err != nil {
			return err
		}
	}
	if o.unplaced != "" {
		if err := csvio.WriteFile(o.unplaced, func(w io.Writer) error {
			return csvio.WriteUnplaced(w, result.Unplaced, delim)
		}); err != nil {
			return err
		}
	}
	if o.summary != "" {
		if err := csvio.WriteFile(o.summary, func(w io.Writer) error {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}); err != nil {
			return err
		}
	}

	printSummary(stdout, result)
	return nil
}

// buildRequest 由命令行参数构造引擎请求
func buildRequest(o *options, cat *csvio.Catalog) (*engine.Request, error) {
	algorithm, err := engine.ParseAlgorithm(o.algorithm)
	if err != nil {
		return nil, err
	}
	mode, err := solver.ParseGreedyMode(o.greedyMode)
	if err != nil {
		return nil, err
	}

	gc := optimizer.DefaultGeneticConfig()
	if o.generations > 0 {
		gc.Generations = o.generations
	}
	if o.population > 0 {
		gc.PopulationSize = o.population
	}

	req := &engine.Request{
		Algorithm: algorithm,
		Subjects:  cat.Subjects,
		Teachers:  cat.Teachers,
		Rooms:     cat.Rooms,
		Slots:     cat.Slots,
		Greedy:    mode,
		Genetic:   gc,
		Timeout:   o.timeout,
	}
	if o.constraints != "" {
		if err := json.Unmarshal([]byte(o.constraints), &req.Constraints); err != nil {
			return nil, fmt.Errorf("解析约束参数失败: %w", err)
		}
		if errs := constraints.ValidateConfig(req.Constraints); len(errs) > 0 {
			return nil, errs[0]
		}
	}
	if o.seedSet {
		seed := o.seed
		req.Seed = &seed
	}
	return req, nil
}

func printSummary(w io.Writer, result *engine.RunResult) {
	m := result.Metrics
	md := result.Metadata

	fmt.Fprintln(w)
	fmt.Fprintf(w, "算法:       %s (seed=%d, %d 次迭代)\n", md.Algorithm, md.Seed, md.Iterations)
	fmt.Fprintf(w, "耗时:       %s\n", md.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "课时:       %d / %d 已安排 (%.1f%%)\n", m.PlacedHours, m.RequiredHours, m.SchedulingRate)
	fmt.Fprintf(w, "冲突:       %d\n", m.TotalConflicts)
	fmt.Fprintf(w, "适应度:     %d\n", m.Fitness)
	fmt.Fprintf(w, "质量评分:   %.1f\n", m.QualityScore)
	if result.Analysis != nil {
		fmt.Fprintf(w, "负荷基尼:   %.3f\n", result.Analysis.LoadGini)
	}
	if md.Cancelled {
		fmt.Fprintln(w, "注意: 运行被取消或超时，输出为当前最优结果")
	} else if md.TimeLimited {
		fmt.Fprintln(w, "注意: 局部搜索达到时间上限，相同种子重放结果可能不同")
	}
	for _, u := range result.Unplaced {
		fmt.Fprintf(w, "未安排: %s 第%d课时 (%s)\n", u.SubjectID, u.Hour, u.Reason)
	}
}
