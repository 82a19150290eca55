package planning

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/mmurooka/differentiable-rmap/kinematics"
	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/qpsolver"
	"github.com/mmurooka/differentiable-rmap/rmap"
	"github.com/mmurooka/differentiable-rmap/sampling"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

const (
	defaultNumReaching        = 2
	defaultPlacementRegWeight = 1e-6
	defaultPlacementWeight    = 1e-3
	defaultSlackPenalty       = 1e6
	defaultIKTrials           = 10
	defaultIKIterations       = 50
	defaultIKTolerance        = 1e-2
)

// PlacementConfig configures a PlacementPlanner. Zero values select
// defaults.
type PlacementConfig struct {
	// Kind selects the sampling space of the placement and reaching samples.
	Kind sampling.Kind
	// NumReaching is the number of reaching entries. Defaults to the number
	// of reaching targets.
	NumReaching int
	// ReachThreshold is the decision value every reaching link should keep.
	ReachThreshold float64
	// RegWeight is the damping floor added to the objective diagonal.
	RegWeight float64
	// PlacementWeight scales the placement entry's tracking term against the
	// reaching tracking terms.
	PlacementWeight float64
	// SlackPenalty is the quadratic penalty on reachability violations.
	SlackPenalty float64
	// DeltaLimit bounds every velocity component per iteration.
	DeltaLimit float64
	// InitialPlacement is the starting base pose.
	InitialPlacement spatialmath.Pose
	// TargetPlacement is the pose the placement entry tracks, weighted by
	// PlacementWeight.
	TargetPlacement spatialmath.Pose
	// TargetReaching are the poses the reaching entries track, one each.
	TargetReaching []spatialmath.Pose

	// Frame enables the IK stage: after each solved iteration the planner
	// looks for joint values realizing every reaching pose relative to the
	// placement. Nil skips the stage.
	Frame kinematics.Frame
	// IKTrials is the number of random IK restarts per reaching entry.
	IKTrials int
	// IKIterations caps the iterations of one IK attempt.
	IKIterations int
	// IKTolerance is the metric score below which an IK solution counts as
	// realized.
	IKTolerance float64
}

func (cfg PlacementConfig) withDefaults() PlacementConfig {
	if cfg.NumReaching == 0 {
		if len(cfg.TargetReaching) > 0 {
			cfg.NumReaching = len(cfg.TargetReaching)
		} else {
			cfg.NumReaching = defaultNumReaching
		}
	}
	if cfg.RegWeight == 0 {
		cfg.RegWeight = defaultPlacementRegWeight
	}
	if cfg.PlacementWeight == 0 {
		cfg.PlacementWeight = defaultPlacementWeight
	}
	if cfg.SlackPenalty == 0 {
		cfg.SlackPenalty = defaultSlackPenalty
	}
	if cfg.DeltaLimit == 0 {
		cfg.DeltaLimit = defaultDeltaLimit
	}
	if cfg.IKTrials == 0 {
		cfg.IKTrials = defaultIKTrials
	}
	if cfg.IKIterations == 0 {
		cfg.IKIterations = defaultIKIterations
	}
	if cfg.IKTolerance == 0 {
		cfg.IKTolerance = defaultIKTolerance
	}
	return cfg
}

// Validate checks the configuration after defaults are applied.
func (cfg PlacementConfig) Validate() error {
	if cfg.NumReaching < 1 {
		return errors.New("reaching_num must be positive")
	}
	if len(cfg.TargetReaching) != cfg.NumReaching {
		return errors.Errorf("got %d reaching targets for %d reaching entries",
			len(cfg.TargetReaching), cfg.NumReaching)
	}
	if cfg.RegWeight < 0 || cfg.PlacementWeight < 0 {
		return errors.New("regularization weights cannot be negative")
	}
	if cfg.SlackPenalty <= 0 {
		return errors.New("slack penalty must be positive")
	}
	if cfg.DeltaLimit <= 0 {
		return errors.New("delta_limit must be positive")
	}
	return nil
}

// PlacementPlanner plans a base placement together with the reaching poses
// it has to serve. Reaching entries track fixed targets while a soft
// reachability constraint ties each of them to the moving placement; an
// optional IK stage checks that the planned reaching poses are realizable
// by an attached frame.
type PlacementPlanner struct {
	cfg        PlacementConfig
	space      sampling.Space
	classifier *rmap.Classifier
	solver     qpsolver.Solver
	ik         kinematics.Solver
	logger     logging.Logger

	placement       sampling.Sample
	reaching        []sampling.Sample
	targetPlacement sampling.Sample
	targetReaching  []sampling.Sample

	qc       *qpsolver.Coefficients
	ikSeeds  [][]float64
	ikJoints [][]float64
}

// NewPlacementPlanner validates the configuration and seeds the reaching
// entries at their targets, leaving the placement to close the gap.
func NewPlacementPlanner(
	classifier *rmap.Classifier,
	solver qpsolver.Solver,
	cfg PlacementConfig,
	logger logging.Logger,
) (*PlacementPlanner, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	space, err := sampling.NewSpace(cfg.Kind)
	if err != nil {
		return nil, err
	}
	if classifier.Space().Kind() != cfg.Kind {
		return nil, errors.Errorf("classifier is trained for %s, planner configured for %s",
			classifier.Space().Kind(), cfg.Kind)
	}

	n, velDim := cfg.NumReaching, space.VelDim()
	p := &PlacementPlanner{
		cfg:             cfg,
		space:           space,
		classifier:      classifier,
		solver:          solver,
		logger:          logger,
		placement:       space.PoseToSample(cfg.InitialPlacement),
		reaching:        make([]sampling.Sample, n),
		targetPlacement: space.PoseToSample(cfg.TargetPlacement),
		targetReaching:  make([]sampling.Sample, n),
		qc:              qpsolver.NewCoefficients((1+n)*velDim+n, n),
	}
	for i, target := range cfg.TargetReaching {
		p.targetReaching[i] = space.PoseToSample(target)
		p.reaching[i] = p.targetReaching[i].Clone()
	}
	if cfg.Frame != nil {
		ikCfg := kinematics.IKConfig{
			Tolerance:     cfg.IKTolerance,
			MaxIterations: cfg.IKIterations,
			Restarts:      cfg.IKTrials,
		}
		// Purely translational spaces put no demand on the end orientation.
		if cfg.Kind == sampling.R2 || cfg.Kind == sampling.R3 {
			ikCfg.GoalMetric = kinematics.NewPositionOnlyMetric
		}
		p.ik = kinematics.NewGradientIK(cfg.Frame, ikCfg, logger)
		p.ikSeeds = make([][]float64, n)
		p.ikJoints = make([][]float64, n)
		dof := len(cfg.Frame.DoF())
		for i := range p.ikSeeds {
			p.ikSeeds[i] = make([]float64, dof)
		}
	}
	return p, nil
}

// Space returns the sampling space the planner operates in.
func (p *PlacementPlanner) Space() sampling.Space {
	return p.space
}

// State returns a snapshot of the placement, the reaching entries and their
// targets.
func (p *PlacementPlanner) State() State {
	reaching := make([]sampling.Sample, len(p.reaching))
	targets := make([]sampling.Sample, len(p.targetReaching))
	for i := range p.reaching {
		reaching[i] = p.reaching[i].Clone()
		targets[i] = p.targetReaching[i].Clone()
	}
	return State{
		Kind: p.cfg.Kind,
		Chains: []NamedChain{
			{Name: PlacementChain, Samples: []sampling.Sample{p.placement.Clone()}},
			{Name: ReachingChain, Samples: reaching},
			{Name: ReachingTargetsChain, Samples: targets},
		},
		Target: p.targetPlacement.Clone(),
	}
}

// JointConfigs returns the joint values found by the IK stage for each
// reaching entry on the last solved iteration, or nil when the stage is
// disabled or has not run.
func (p *PlacementPlanner) JointConfigs() [][]float64 {
	if p.ikJoints == nil {
		return nil
	}
	out := make([][]float64, len(p.ikJoints))
	for i, joints := range p.ikJoints {
		if joints == nil {
			continue
		}
		out[i] = append([]float64(nil), joints...)
	}
	return out
}

// Step runs one planning iteration. TrackingError reports the combined
// reaching error; the placement tracking term does not count toward it.
func (p *PlacementPlanner) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	n, velDim := p.cfg.NumReaching, p.space.VelDim()
	configDim := (1 + n) * velDim
	dim := configDim + n
	qc := p.qc
	qc.Reset()
	for i := 0; i < configDim; i++ {
		qc.XMin[i] = -p.cfg.DeltaLimit
		qc.XMax[i] = p.cfg.DeltaLimit
	}
	for i := configDim; i < dim; i++ {
		qc.XMin[i] = -slackLimit
		qc.XMax[i] = slackLimit
	}

	placeErr := p.space.SampleError(p.targetPlacement, p.placement)
	for k, e := range placeErr {
		qc.ObjVec[k] = p.cfg.PlacementWeight * e
	}
	var trackSq float64
	for i := 0; i < n; i++ {
		reachErr := p.space.SampleError(p.targetReaching[i], p.reaching[i])
		copy(qc.ObjVec[(1+i)*velDim:], reachErr)
		trackSq += floats.Dot(reachErr, reachErr)
	}
	lambda := floats.Dot(qc.ObjVec[:configDim], qc.ObjVec[:configDim]) + p.cfg.RegWeight
	setDiag(qc.ObjMat, 0, velDim, p.cfg.PlacementWeight)
	setDiag(qc.ObjMat, velDim, configDim, 1)
	addDiag(qc.ObjMat, 0, configDim, lambda)
	setDiag(qc.ObjMat, configDim, dim, p.cfg.SlackPenalty)

	for i := 0; i < n; i++ {
		suc := p.reaching[i]
		rel := p.space.RelSample(p.placement, suc)
		grad := p.classifier.Gradient(rel)
		setIneqBlock(qc.IneqMat, i, 0, grad, p.space.RelVelToVelMat(p.placement, suc, false))
		setIneqBlock(qc.IneqMat, i, (1+i)*velDim, grad, p.space.RelVelToVelMat(p.placement, suc, true))
		qc.IneqMat.Set(i, configDim+i, -1)
		qc.IneqVec[i] = p.classifier.Value(rel) - p.cfg.ReachThreshold
	}

	res := StepResult{SolverOK: true, IKConverged: true, TrackingError: math.Sqrt(trackSq)}
	vel, err := p.solver.Solve(ctx, qc)
	if err != nil {
		if !errors.Is(err, qpsolver.ErrSolveFailed) {
			return StepResult{}, err
		}
		p.logger.Warnw("QP solve failed, keeping the placement state", "error", err)
		res.SolverOK = false
		return res, nil
	}
	p.placement = p.space.IntegrateVel(p.placement, vel[:velDim])
	for i := 0; i < n; i++ {
		p.reaching[i] = p.space.IntegrateVel(p.reaching[i], vel[(1+i)*velDim:(2+i)*velDim])
	}

	if p.ik != nil {
		placementPose := p.space.SampleToPose(p.placement)
		for i := 0; i < n; i++ {
			goal := spatialmath.PoseBetween(placementPose, p.space.SampleToPose(p.reaching[i]))
			joints, _, err := p.ik.Solve(ctx, goal, p.ikSeeds[i])
			if err != nil {
				if !errors.Is(err, kinematics.ErrIKFailed) {
					return StepResult{}, err
				}
				p.logger.Warnw("inverse kinematics did not converge for reaching entry",
					"entry", i, "error", err)
				res.IKConverged = false
			}
			p.ikJoints[i] = joints
			copy(p.ikSeeds[i], joints)
		}
	}
	return res, nil
}
