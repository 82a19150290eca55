package planning

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/mmurooka/differentiable-rmap/logging"
	"github.com/mmurooka/differentiable-rmap/qpsolver"
	"github.com/mmurooka/differentiable-rmap/rmap"
	"github.com/mmurooka/differentiable-rmap/sampling"
	"github.com/mmurooka/differentiable-rmap/spatialmath"
)

const (
	defaultNumFootsteps      = 3
	defaultAdjacentRegWeight = 1e-2
	defaultRegWeight         = 1e-3
	defaultDeltaLimit        = 0.1
)

// FootstepConfig configures a FootstepPlanner. Zero values select defaults.
type FootstepConfig struct {
	// Kind selects the sampling space of the footstep samples.
	Kind sampling.Kind
	// NumFootsteps is the number of planned steps.
	NumFootsteps int
	// ReachThreshold is the decision value every step link must keep.
	ReachThreshold float64
	// AdjacentRegWeight couples consecutive steps and anchors the first step
	// at the starting stance.
	AdjacentRegWeight float64
	// RegWeight is the damping floor added to the objective diagonal.
	RegWeight float64
	// DeltaLimit bounds every velocity component per iteration.
	DeltaLimit float64
	// AlternateLR mirrors odd steps about the sagittal plane so a model
	// trained for one foot serves both. SE2 only.
	AlternateLR bool
	// InitialStep seeds the chain: entry i is entry i-1 composed with this
	// step, mirrored on odd entries when AlternateLR is set.
	InitialStep spatialmath.Pose
	// Target is the pose the last footstep tracks.
	Target spatialmath.Pose
}

func (cfg FootstepConfig) withDefaults() FootstepConfig {
	if cfg.NumFootsteps == 0 {
		cfg.NumFootsteps = defaultNumFootsteps
	}
	if cfg.AdjacentRegWeight == 0 {
		cfg.AdjacentRegWeight = defaultAdjacentRegWeight
	}
	if cfg.RegWeight == 0 {
		cfg.RegWeight = defaultRegWeight
	}
	if cfg.DeltaLimit == 0 {
		cfg.DeltaLimit = defaultDeltaLimit
	}
	return cfg
}

// Validate checks the configuration after defaults are applied.
func (cfg FootstepConfig) Validate() error {
	if cfg.NumFootsteps < 1 {
		return errors.New("footstep_num must be positive")
	}
	if cfg.AdjacentRegWeight < 0 || cfg.RegWeight < 0 {
		return errors.New("regularization weights cannot be negative")
	}
	if cfg.DeltaLimit <= 0 {
		return errors.New("delta_limit must be positive")
	}
	if cfg.AlternateLR && cfg.Kind != sampling.SE2 {
		return errors.Errorf("alternate_lr requires the SE2 sampling space, got %s", cfg.Kind)
	}
	return nil
}

// FootstepPlanner plans a footstep sequence whose last step tracks a target
// pose while every step stays reachable from the one before it.
type FootstepPlanner struct {
	cfg        FootstepConfig
	space      sampling.Space
	classifier *rmap.Classifier
	solver     qpsolver.Solver
	logger     logging.Logger

	chain    []sampling.Sample
	target   sampling.Sample
	identity sampling.Sample

	adjacent   *mat.SymDense
	qc         *qpsolver.Coefficients
	current    []float64
	currentVec *mat.VecDense
	adjVec     *mat.VecDense
}

// NewFootstepPlanner validates the configuration and seeds the footstep
// chain by accumulating InitialStep.
func NewFootstepPlanner(
	classifier *rmap.Classifier,
	solver qpsolver.Solver,
	cfg FootstepConfig,
	logger logging.Logger,
) (*FootstepPlanner, error) {
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

	n, velDim := cfg.NumFootsteps, space.VelDim()
	p := &FootstepPlanner{
		cfg:        cfg,
		space:      space,
		classifier: classifier,
		solver:     solver,
		logger:     logger,
		chain:      make([]sampling.Sample, n),
		target:     space.PoseToSample(cfg.Target),
		identity:   space.IdentitySample(),
		adjacent:   AdjacencyMatrix(velDim, n, cfg.AdjacentRegWeight),
		qc:         qpsolver.NewCoefficients(n*velDim, n),
		current:    make([]float64, n*velDim),
	}
	p.currentVec = mat.NewVecDense(n*velDim, p.current)
	p.adjVec = mat.NewVecDense(n*velDim, nil)

	mirroredStep := cfg.InitialStep
	if cfg.AlternateLR {
		mirroredStep = space.SampleToPose(sampling.MirrorSample(space.PoseToSample(cfg.InitialStep)))
	}
	accum := spatialmath.NewZeroPose()
	for i := 0; i < n; i++ {
		step := cfg.InitialStep
		if cfg.AlternateLR && i%2 == 1 {
			step = mirroredStep
		}
		accum = spatialmath.Compose(accum, step)
		p.chain[i] = space.PoseToSample(accum)
	}
	return p, nil
}

// Space returns the sampling space the planner operates in.
func (p *FootstepPlanner) Space() sampling.Space {
	return p.space
}

// State returns a snapshot of the footstep chain and target.
func (p *FootstepPlanner) State() State {
	samples := make([]sampling.Sample, len(p.chain))
	for i, s := range p.chain {
		samples[i] = s.Clone()
	}
	return State{
		Kind:   p.cfg.Kind,
		Chains: []NamedChain{{Name: FootstepChain, Samples: samples}},
		Target: p.target.Clone(),
	}
}

// Step runs one planning iteration: linearize the reachability constraint of
// every step link, solve for the velocity increments, and integrate them.
func (p *FootstepPlanner) Step(ctx context.Context) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	n, velDim := p.cfg.NumFootsteps, p.space.VelDim()
	dim := n * velDim
	qc := p.qc
	qc.Reset()
	for i := 0; i < dim; i++ {
		qc.XMin[i] = -p.cfg.DeltaLimit
		qc.XMax[i] = p.cfg.DeltaLimit
	}

	trackErr := p.space.SampleError(p.target, p.chain[n-1])
	copy(qc.ObjVec[(n-1)*velDim:], trackErr)
	lambda := floats.Dot(trackErr, trackErr) + p.cfg.RegWeight
	setDiag(qc.ObjMat, (n-1)*velDim, dim, 1)
	addDiag(qc.ObjMat, 0, dim, lambda)

	// The adjacency term treats manifold errors as linear coordinates, which
	// is approximate away from the identity.
	for i := 0; i < n; i++ {
		copy(p.current[i*velDim:], p.space.SampleError(p.identity, p.chain[i]))
	}
	p.adjVec.MulVec(p.adjacent, p.currentVec)
	floats.Add(qc.ObjVec, p.adjVec.RawVector().Data)
	qc.ObjMat.AddSym(qc.ObjMat, p.adjacent)

	for i := 0; i < n; i++ {
		pre := p.identity
		if i > 0 {
			pre = p.chain[i-1]
		}
		suc := p.chain[i]
		rel := p.space.RelSample(pre, suc)
		mirrored := p.cfg.AlternateLR && i%2 == 1
		if mirrored {
			rel = sampling.MirrorSample(rel)
		}
		grad := p.classifier.Gradient(rel)
		jacSuc := p.space.RelVelToVelMat(pre, suc, true)
		if mirrored {
			sampling.MirrorVelRows(jacSuc)
		}
		setIneqBlock(qc.IneqMat, i, i*velDim, grad, jacSuc)
		qc.IneqVec[i] = p.classifier.Value(rel) - p.cfg.ReachThreshold
		if i > 0 {
			jacPre := p.space.RelVelToVelMat(pre, suc, false)
			if mirrored {
				sampling.MirrorVelRows(jacPre)
			}
			setIneqBlock(qc.IneqMat, i, (i-1)*velDim, grad, jacPre)
		}
	}

	res := StepResult{SolverOK: true, IKConverged: true, TrackingError: floats.Norm(trackErr, 2)}
	vel, err := p.solver.Solve(ctx, qc)
	if err != nil {
		if !errors.Is(err, qpsolver.ErrSolveFailed) {
			return StepResult{}, err
		}
		p.logger.Warnw("QP solve failed, keeping the footstep sequence", "error", err)
		res.SolverOK = false
		return res, nil
	}
	for i := 0; i < n; i++ {
		p.chain[i] = p.space.IntegrateVel(p.chain[i], vel[i*velDim:(i+1)*velDim])
	}
	return res, nil
}
