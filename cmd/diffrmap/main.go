// Package main is the diffrmap command line tool. It samples workspaces into
// labeled sets, trains reachability classifiers on them, and runs the QP
// planners on the trained maps.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	goutils "go.viam.com/utils"

	"github.com/mmurooka/differentiable-rmap/kinematics"
	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/planning"
	"github.com/mmurooka/differentiable-rmap/qpsolver"
	"github.com/mmurooka/differentiable-rmap/rmap"
	"github.com/mmurooka/differentiable-rmap/sampler"
	"github.com/mmurooka/differentiable-rmap/sampleset"
	"github.com/mmurooka/differentiable-rmap/sampling"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
	"github.com/mmurooka/differentiable-rmap/viz"
)

const (
	// Flags.
	flagDebug             = "debug"
	flagSpace             = "space"
	flagSampler           = "sampler"
	flagNumSamples        = "num-samples"
	flagSeed              = "seed"
	flagLinks             = "links"
	flagBound             = "bound"
	flagOut               = "out"
	flagSet               = "set"
	flagModel             = "model"
	flagGamma             = "gamma"
	flagCost              = "cost"
	flagThreshold         = "threshold"
	flagPlot              = "plot"
	flagDivide            = "divide"
	flagMin               = "min"
	flagMax               = "max"
	flagGrid              = "grid"
	flagXDim              = "x-dim"
	flagYDim              = "y-dim"
	flagFixed             = "fixed"
	flagConfig            = "config"
	flagSolver            = "solver"
	flagMaxIterations     = "max-iterations"
	flagConvergeThreshold = "converge-threshold"
	flagLoopRate          = "loop-rate"
	flagFrames            = "frames"
	flagFrameInterval     = "frame-interval"
	flagLeftFootModel     = "left-foot-model"
	flagRightFootModel    = "right-foot-model"
	flagLeftHandModel     = "left-hand-model"

	samplerFK       = "fk"
	samplerIK       = "ik"
	samplerFootstep = "footstep"

	solverADMM  = "admm"
	solverSLSQP = "slsqp"
)

var logger = logging.NewLogger("diffrmap")

func main() {
	goutils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, _ logging.Logger) error {
	app := &cli.App{
		Name:  "diffrmap",
		Usage: "sample, train, and plan with differentiable reachability maps",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool(flagDebug) {
				logger = logging.NewDebugLogger("diffrmap")
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "sample",
				Usage: "generate a labeled sample set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagSpace,
						Value: "r2",
						Usage: "sampling space (r2, so2, se2, r3, so3, se3)",
					},
					&cli.StringFlag{
						Name:  flagSampler,
						Value: samplerFK,
						Usage: "sampling method (fk, ik, footstep)",
					},
					&cli.IntFlag{
						Name:  flagNumSamples,
						Value: 10000,
						Usage: "number of samples to generate",
					},
					&cli.Int64Flag{
						Name:  flagSeed,
						Usage: "seed for the sample generator",
					},
					&cli.Float64SliceFlag{
						Name:  flagLinks,
						Value: cli.NewFloat64Slice(0.6, 0.4),
						Usage: "planar chain link lengths for fk and ik sampling",
					},
					&cli.Float64Flag{
						Name:  flagBound,
						Value: 1,
						Usage: "half width of the target box for ik sampling",
					},
					&cli.StringFlag{
						Name:  flagOut,
						Value: "samples.json",
						Usage: "path of the written sample set",
					},
				},
				Action: sampleAction,
			},
			{
				Name:  "train",
				Usage: "train a classifier on a sample set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagSet,
						Required: true,
						Usage:    "path of the sample set to train on",
					},
					&cli.Float64Flag{
						Name:  flagGamma,
						Usage: "RBF kernel width (0 selects the trainer default)",
					},
					&cli.Float64Flag{
						Name:  flagCost,
						Usage: "soft margin penalty (0 selects the trainer default)",
					},
					&cli.Float64Flag{
						Name:  flagThreshold,
						Usage: "decision threshold for the training accuracy report",
					},
					&cli.StringFlag{
						Name:  flagOut,
						Value: "model.json",
						Usage: "path of the written model",
					},
				},
				Action: trainAction,
			},
			{
				Name:  "eval",
				Usage: "sweep decision thresholds of a trained model over a sample set",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     flagModel,
						Required: true,
						Usage:    "path of the trained model",
					},
					&cli.StringFlag{
						Name:     flagSet,
						Required: true,
						Usage:    "path of the sample set to evaluate on",
					},
					&cli.StringFlag{
						Name:  flagPlot,
						Usage: "write accuracy curves to this image path",
					},
				},
				Action: evalAction,
			},
			{
				Name:  "grid",
				Usage: "discretize and plot trained models",
				Subcommands: []*cli.Command{
					{
						Name:  "build",
						Usage: "evaluate a model over a lattice and save the values",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     flagModel,
								Required: true,
								Usage:    "path of the trained model",
							},
							&cli.IntSliceFlag{
								Name:  flagDivide,
								Value: cli.NewIntSlice(20),
								Usage: "cells per dimension (single value applies to all)",
							},
							&cli.Float64SliceFlag{
								Name:  flagMin,
								Usage: "lower bounds per dimension (default -1)",
							},
							&cli.Float64SliceFlag{
								Name:  flagMax,
								Usage: "upper bounds per dimension (default 1)",
							},
							&cli.StringFlag{
								Name:  flagOut,
								Value: "grid.json",
								Usage: "path of the written grid set",
							},
						},
						Action: gridBuildAction,
					},
					{
						Name:  "plot",
						Usage: "render a two dimensional slice of a grid set",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     flagGrid,
								Required: true,
								Usage:    "path of the grid set",
							},
							&cli.IntFlag{
								Name:  flagXDim,
								Value: 0,
								Usage: "sample dimension on the plot x axis",
							},
							&cli.IntFlag{
								Name:  flagYDim,
								Value: 1,
								Usage: "sample dimension on the plot y axis",
							},
							&cli.IntSliceFlag{
								Name:  flagFixed,
								Usage: "lattice indices of the remaining dimensions (default 0)",
							},
							&cli.StringFlag{
								Name:  flagOut,
								Value: "grid.png",
								Usage: "path of the written image",
							},
						},
						Action: gridPlotAction,
					},
				},
			},
			{
				Name:  "plan",
				Usage: "run a QP planner on trained maps",
				Subcommands: []*cli.Command{
					{
						Name:  "footstep",
						Usage: "plan a footstep sequence toward a target stance",
						Flags: append([]cli.Flag{
							&cli.StringFlag{
								Name:     flagModel,
								Required: true,
								Usage:    "path of the trained step model",
							},
						}, planRunFlags()...),
						Action: planFootstepAction,
					},
					{
						Name:  "placement",
						Usage: "plan a base placement covering reaching targets",
						Flags: append([]cli.Flag{
							&cli.StringFlag{
								Name:     flagModel,
								Required: true,
								Usage:    "path of the trained reaching model",
							},
						}, planRunFlags()...),
						Action: planPlacementAction,
					},
					{
						Name:  "locomanip",
						Usage: "plan coupled foot and hand motions toward a hand target",
						Flags: append([]cli.Flag{
							&cli.StringFlag{
								Name:     flagLeftFootModel,
								Required: true,
								Usage:    "path of the left foot model",
							},
							&cli.StringFlag{
								Name:     flagRightFootModel,
								Required: true,
								Usage:    "path of the right foot model",
							},
							&cli.StringFlag{
								Name:     flagLeftHandModel,
								Required: true,
								Usage:    "path of the left hand model",
							},
						}, planRunFlags()...),
						Action: planLocomanipAction,
					},
				},
			},
		},
	}

	return app.RunContext(ctx, args)
}

// planRunFlags are the run loop flags shared by all plan subcommands.
func planRunFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     flagConfig,
			Required: true,
			Usage:    "path of the JSON planner configuration",
		},
		&cli.StringFlag{
			Name:  flagSolver,
			Value: solverADMM,
			Usage: "QP solver (admm, slsqp)",
		},
		&cli.IntFlag{
			Name:  flagMaxIterations,
			Value: 500,
			Usage: "stop after this many iterations",
		},
		&cli.Float64Flag{
			Name:  flagConvergeThreshold,
			Usage: "stop once the tracking error falls below this (0 disables)",
		},
		&cli.DurationFlag{
			Name:  flagLoopRate,
			Usage: "pace iterations at this period (0 runs unpaced)",
		},
		&cli.StringFlag{
			Name:  flagFrames,
			Usage: "write per iteration images into this directory",
		},
		&cli.IntFlag{
			Name:  flagFrameInterval,
			Value: 20,
			Usage: "iterations between written frames",
		},
		&cli.StringFlag{
			Name:  flagOut,
			Usage: "write the final chains to this image path",
		},
	}
}

func sampleAction(c *cli.Context) error {
	kind, err := sampling.KindFromString(c.String(flagSpace))
	if err != nil {
		return err
	}
	space, err := sampling.NewSpace(kind)
	if err != nil {
		return err
	}
	cfg := sampler.Config{
		NumSamples: c.Int(flagNumSamples),
		Seed:       c.Int64(flagSeed),
	}

	var s sampler.Sampler
	switch c.String(flagSampler) {
	case samplerFK:
		chain, err := planarChain(c.Float64Slice(flagLinks))
		if err != nil {
			return err
		}
		s, err = sampler.NewFKSampler(chain, space, cfg, logger)
		if err != nil {
			return err
		}
	case samplerIK:
		chain, err := planarChain(c.Float64Slice(flagLinks))
		if err != nil {
			return err
		}
		ikCfg := kinematics.IKConfig{
			Tolerance:     1e-4,
			MaxIterations: 200,
			Seed:          c.Int64(flagSeed),
		}
		if kind == sampling.R2 || kind == sampling.R3 {
			ikCfg.GoalMetric = kinematics.NewPositionOnlyMetric
		}
		solver := kinematics.NewGradientIK(chain, ikCfg, logger)
		b := c.Float64(flagBound)
		s, err = sampler.NewIKSampler(chain, space, solver, sampler.IKConfig{
			Config: cfg,
			PosMin: r3.Vector{X: -b, Y: -b, Z: -b},
			PosMax: r3.Vector{X: b, Y: b, Z: b},
		}, logger)
		if err != nil {
			return err
		}
	case samplerFootstep:
		if kind != sampling.SE2 {
			return errors.Errorf("footstep sampling requires the se2 space, got %s", kind)
		}
		s, err = sampler.NewFootstepSampler(sampler.FootstepConfig{Config: cfg}, logger)
		if err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown sampler %q", c.String(flagSampler))
	}

	set, err := s.Run(c.Context)
	if err != nil {
		return err
	}
	out := c.String(flagOut)
	if err := set.Save(out); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "saved %d samples (%d reachable) to %s\n",
		set.Len(), set.NumReachable(), out)
	return nil
}

func trainAction(c *cli.Context) error {
	set, err := sampleset.Load(c.String(flagSet))
	if err != nil {
		return err
	}
	clf, err := rmap.Train(c.Context, set, rmap.TrainConfig{
		Gamma: c.Float64(flagGamma),
		Cost:  c.Float64(flagCost),
	}, logger)
	if err != nil {
		return err
	}
	out := c.String(flagOut)
	if err := clf.Model().Save(out); err != nil {
		return err
	}
	acc, err := rmap.Evaluate(clf, set, c.Float64(flagThreshold))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "trained %d support vectors from %d samples, accuracy %.3f, saved to %s\n",
		len(clf.Model().SupportVectors), set.Len(), acc.Rate(), out)
	return nil
}

func evalAction(c *cli.Context) error {
	clf, err := rmap.LoadModel(c.String(flagModel))
	if err != nil {
		return err
	}
	set, err := sampleset.Load(c.String(flagSet))
	if err != nil {
		return err
	}

	thresholds := make([]float64, 0, 41)
	for i := 0; i <= 40; i++ {
		thresholds = append(thresholds, -1+float64(i)*0.05)
	}
	result, err := rmap.EvaluateSweep(clf, set, thresholds)
	if err != nil {
		return err
	}

	best := result.Best()
	fmt.Fprintf(c.App.Writer, "best threshold %.3f: accuracy %.3f, precision %.3f, recall %.3f\n",
		best.Threshold, best.Accuracy.Rate(), best.Accuracy.Precision(), best.Accuracy.Recall())
	fmt.Fprintf(c.App.Writer, "reachable values: mean %.3f stddev %.3f range [%.3f, %.3f]\n",
		result.ReachableValues.Mean, result.ReachableValues.Stddev,
		result.ReachableValues.Min, result.ReachableValues.Max)
	fmt.Fprintf(c.App.Writer, "unreachable values: mean %.3f stddev %.3f range [%.3f, %.3f]\n",
		result.UnreachableValues.Mean, result.UnreachableValues.Stddev,
		result.UnreachableValues.Min, result.UnreachableValues.Max)

	if path := c.String(flagPlot); path != "" {
		if err := viz.PlotAccuracySweep(result, path); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	}
	return nil
}

func gridBuildAction(c *cli.Context) error {
	clf, err := rmap.LoadModel(c.String(flagModel))
	if err != nil {
		return err
	}
	dim := clf.Space().SampleDim()
	counts, err := expandCounts(c.IntSlice(flagDivide), dim)
	if err != nil {
		return err
	}
	minBound, err := expandBounds(c.Float64Slice(flagMin), dim, -1)
	if err != nil {
		return err
	}
	maxBound, err := expandBounds(c.Float64Slice(flagMax), dim, 1)
	if err != nil {
		return err
	}

	g, err := rmap.BuildGridSet(c.Context, clf, counts, minBound, maxBound)
	if err != nil {
		return err
	}
	out := c.String(flagOut)
	if err := g.Save(out); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %d grid values to %s\n", g.Len(), out)
	return nil
}

func gridPlotAction(c *cli.Context) error {
	g, err := rmap.LoadGridSet(c.String(flagGrid))
	if err != nil {
		return err
	}
	dim := len(g.DivideCounts())
	fixed := c.IntSlice(flagFixed)
	if len(fixed) == 0 && dim > 2 {
		fixed = make([]int, dim-2)
	}
	out := c.String(flagOut)
	if err := viz.PlotGridSlice(g, c.Int(flagXDim), c.Int(flagYDim), fixed, out); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", out)
	return nil
}

func planFootstepAction(c *cli.Context) error {
	clf, err := rmap.LoadModel(c.String(flagModel))
	if err != nil {
		return err
	}
	var cfg footstepPlanConfig
	if err := readJSONConfig(c.String(flagConfig), &cfg); err != nil {
		return err
	}
	plannerCfg, err := cfg.toPlannerConfig()
	if err != nil {
		return err
	}
	solver, err := newSolver(c.String(flagSolver))
	if err != nil {
		return err
	}
	planner, err := planning.NewFootstepPlanner(clf, solver, plannerCfg, logger)
	if err != nil {
		return err
	}
	return runPlanner(c, planner)
}

func planPlacementAction(c *cli.Context) error {
	clf, err := rmap.LoadModel(c.String(flagModel))
	if err != nil {
		return err
	}
	var cfg placementPlanConfig
	if err := readJSONConfig(c.String(flagConfig), &cfg); err != nil {
		return err
	}
	plannerCfg, err := cfg.toPlannerConfig()
	if err != nil {
		return err
	}
	solver, err := newSolver(c.String(flagSolver))
	if err != nil {
		return err
	}
	planner, err := planning.NewPlacementPlanner(clf, solver, plannerCfg, logger)
	if err != nil {
		return err
	}
	if err := runPlanner(c, planner); err != nil {
		return err
	}
	for i, joints := range planner.JointConfigs() {
		fmt.Fprintf(c.App.Writer, "reaching %d joints: %s\n", i, formatSample(joints))
	}
	return nil
}

func planLocomanipAction(c *cli.Context) error {
	classifiers := map[planning.Limb]*rmap.Classifier{}
	for limb, flag := range map[planning.Limb]string{
		planning.LeftFoot:  flagLeftFootModel,
		planning.RightFoot: flagRightFootModel,
		planning.LeftHand:  flagLeftHandModel,
	} {
		clf, err := rmap.LoadModel(c.String(flag))
		if err != nil {
			return errors.Wrapf(err, "loading the %s model", limb)
		}
		classifiers[limb] = clf
	}
	var cfg locomanipPlanConfig
	if err := readJSONConfig(c.String(flagConfig), &cfg); err != nil {
		return err
	}
	plannerCfg, err := cfg.toPlannerConfig()
	if err != nil {
		return err
	}
	solver, err := newSolver(c.String(flagSolver))
	if err != nil {
		return err
	}
	planner, err := planning.NewLocomanipPlanner(classifiers, solver, plannerCfg, logger)
	if err != nil {
		return err
	}
	return runPlanner(c, planner)
}

// runPlanner drives a constructed planner with the shared run flags and
// reports the final chains.
func runPlanner(c *cli.Context, p planning.Planner) error {
	opts := planning.LoopOptions{
		MaxIterations:     c.Int(flagMaxIterations),
		ConvergeThreshold: c.Float64(flagConvergeThreshold),
		LoopRate:          c.Duration(flagLoopRate),
	}
	if dir := c.String(flagFrames); dir != "" {
		pub, err := viz.NewImagePublisher(dir, viz.DrawConfig{}, logger)
		if err != nil {
			return err
		}
		defer pub.Flush()
		opts.Publisher = pub
		opts.PublishInterval = c.Int(flagFrameInterval)
	}

	if err := planning.Run(c.Context, p, opts, logger); err != nil {
		return err
	}

	st := p.State()
	for _, chain := range st.Chains {
		fmt.Fprintf(c.App.Writer, "%s:\n", chain.Name)
		for i, s := range chain.Samples {
			fmt.Fprintf(c.App.Writer, "  %2d: %s\n", i, formatSample(s))
		}
	}
	if st.Target != nil {
		fmt.Fprintf(c.App.Writer, "target: %s\n", formatSample(st.Target))
	}
	if out := c.String(flagOut); out != "" {
		if err := viz.DrawChain2D(st, viz.DrawConfig{}, out); err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "wrote %s\n", out)
	}
	return nil
}

func newSolver(name string) (qpsolver.Solver, error) {
	switch name {
	case solverADMM:
		return qpsolver.NewADMMSolver(qpsolver.ADMMConfig{}, logger), nil
	case solverSLSQP:
		return qpsolver.NewSLSQPSolver(qpsolver.SLSQPConfig{}, logger)
	default:
		return nil, errors.Errorf("unknown solver %q", name)
	}
}

func planarChain(links []float64) (*kinematics.SerialChain, error) {
	if len(links) == 0 {
		return nil, errors.New("at least one link length is required")
	}
	return kinematics.NewPlanarChain("arm", links, kinematics.Limit{Min: -math.Pi, Max: math.Pi})
}

func readJSONConfig(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "parsing config %s", path)
	}
	return nil
}

func expandCounts(vals []int, dim int) ([]int, error) {
	out := make([]int, dim)
	switch len(vals) {
	case 1:
		for i := range out {
			out[i] = vals[0]
		}
	case dim:
		copy(out, vals)
	default:
		return nil, errors.Errorf("expected 1 or %d divide counts, got %d", dim, len(vals))
	}
	return out, nil
}

func expandBounds(vals []float64, dim int, fallback float64) ([]float64, error) {
	out := make([]float64, dim)
	switch len(vals) {
	case 0:
		for i := range out {
			out[i] = fallback
		}
	case 1:
		for i := range out {
			out[i] = vals[0]
		}
	case dim:
		copy(out, vals)
	default:
		return nil, errors.Errorf("expected 1 or %d bounds, got %d", dim, len(vals))
	}
	return out, nil
}

func formatSample(s []float64) string {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.FormatFloat(v, 'f', 4, 64)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// poseConfig is a pose in a JSON planner configuration: a position and a yaw
// rotation about the z axis.
type poseConfig struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
	Yaw float64 `json:"yaw"`
}

func (pc poseConfig) toPose() spatialmath.Pose {
	return spatialmath.NewPose(r3.Vector{X: pc.X, Y: pc.Y, Z: pc.Z}, spatialmath.NewZRotation(pc.Yaw))
}

type footstepPlanConfig struct {
	Space             string     `json:"space"`
	NumFootsteps      int        `json:"footstep_num"`
	ReachThreshold    float64    `json:"reach_threshold"`
	AdjacentRegWeight float64    `json:"adjacent_reg_weight"`
	RegWeight         float64    `json:"reg_weight"`
	DeltaLimit        float64    `json:"delta_limit"`
	AlternateLR       bool       `json:"alternate_lr"`
	InitialStep       poseConfig `json:"initial_step"`
	Target            poseConfig `json:"target"`
}

func (cfg footstepPlanConfig) toPlannerConfig() (planning.FootstepConfig, error) {
	kind, err := sampling.KindFromString(cfg.Space)
	if err != nil {
		return planning.FootstepConfig{}, err
	}
	return planning.FootstepConfig{
		Kind:              kind,
		NumFootsteps:      cfg.NumFootsteps,
		ReachThreshold:    cfg.ReachThreshold,
		AdjacentRegWeight: cfg.AdjacentRegWeight,
		RegWeight:         cfg.RegWeight,
		DeltaLimit:        cfg.DeltaLimit,
		AlternateLR:       cfg.AlternateLR,
		InitialStep:       cfg.InitialStep.toPose(),
		Target:            cfg.Target.toPose(),
	}, nil
}

type placementPlanConfig struct {
	Space            string       `json:"space"`
	NumReaching      int          `json:"reaching_num"`
	ReachThreshold   float64      `json:"reach_threshold"`
	RegWeight        float64      `json:"reg_weight"`
	PlacementWeight  float64      `json:"placement_weight"`
	SlackPenalty     float64      `json:"slack_penalty"`
	DeltaLimit       float64      `json:"delta_limit"`
	InitialPlacement poseConfig   `json:"initial_placement"`
	TargetPlacement  poseConfig   `json:"target_placement"`
	TargetReaching   []poseConfig `json:"target_reaching"`
	ArmLinks         []float64    `json:"arm_links"`
	IKTrials         int          `json:"ik_trials"`
	IKIterations     int          `json:"ik_iterations"`
	IKTolerance      float64      `json:"ik_tolerance"`
}

func (cfg placementPlanConfig) toPlannerConfig() (planning.PlacementConfig, error) {
	kind, err := sampling.KindFromString(cfg.Space)
	if err != nil {
		return planning.PlacementConfig{}, err
	}
	out := planning.PlacementConfig{
		Kind:             kind,
		NumReaching:      cfg.NumReaching,
		ReachThreshold:   cfg.ReachThreshold,
		RegWeight:        cfg.RegWeight,
		PlacementWeight:  cfg.PlacementWeight,
		SlackPenalty:     cfg.SlackPenalty,
		DeltaLimit:       cfg.DeltaLimit,
		InitialPlacement: cfg.InitialPlacement.toPose(),
		TargetPlacement:  cfg.TargetPlacement.toPose(),
		IKTrials:         cfg.IKTrials,
		IKIterations:     cfg.IKIterations,
		IKTolerance:      cfg.IKTolerance,
	}
	for _, target := range cfg.TargetReaching {
		out.TargetReaching = append(out.TargetReaching, target.toPose())
	}
	if len(cfg.ArmLinks) > 0 {
		chain, err := planarChain(cfg.ArmLinks)
		if err != nil {
			return planning.PlacementConfig{}, err
		}
		out.Frame = chain
	}
	return out, nil
}

type locomanipPlanConfig struct {
	Space             string                `json:"space"`
	MotionLen         int                   `json:"motion_len"`
	ReachThreshold    float64               `json:"reach_threshold"`
	AdjacentRegWeight float64               `json:"adjacent_reg_weight"`
	RegWeight         float64               `json:"reg_weight"`
	SlackPenalty      float64               `json:"slack_penalty"`
	DeltaLimit        float64               `json:"delta_limit"`
	StartPoses        map[string]poseConfig `json:"start_poses"`
	TargetHand        poseConfig            `json:"target_hand"`
}

func (cfg locomanipPlanConfig) toPlannerConfig() (planning.LocomanipConfig, error) {
	kind, err := sampling.KindFromString(cfg.Space)
	if err != nil {
		return planning.LocomanipConfig{}, err
	}
	out := planning.LocomanipConfig{
		Kind:              kind,
		MotionLen:         cfg.MotionLen,
		ReachThreshold:    cfg.ReachThreshold,
		AdjacentRegWeight: cfg.AdjacentRegWeight,
		RegWeight:         cfg.RegWeight,
		SlackPenalty:      cfg.SlackPenalty,
		DeltaLimit:        cfg.DeltaLimit,
		TargetHand:        cfg.TargetHand.toPose(),
	}
	for name, pose := range cfg.StartPoses {
		limb, err := limbFromString(name)
		if err != nil {
			return planning.LocomanipConfig{}, err
		}
		if out.StartPoses == nil {
			out.StartPoses = map[planning.Limb]spatialmath.Pose{}
		}
		out.StartPoses[limb] = pose.toPose()
	}
	return out, nil
}

func limbFromString(name string) (planning.Limb, error) {
	for _, limb := range planning.Limbs {
		if string(limb) == name {
			return limb, nil
		}
	}
	return "", errors.Errorf("unknown limb %q", name)
}
