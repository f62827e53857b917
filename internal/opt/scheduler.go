package opt

import "math"

// Scheduler defines the interface for learning rate schedulers.
type Scheduler interface {
	Step()
	StepWithLoss(loss float64)
	GetLR() float64
}

// BaseScheduler provides default implementations for Scheduler.
type BaseScheduler struct{}

func (s BaseScheduler) Step()                     {}
func (s BaseScheduler) StepWithLoss(loss float64) {}

// StepLR decays the learning rate by gamma every stepSize epochs.
type StepLR struct {
	BaseScheduler
	optimizer LearningRater
	stepSize  int
	gamma     float64
	lastEpoch int
}

func NewStepLR(optimizer LearningRater, stepSize int, gamma float64) *StepLR {
	return &StepLR{
		optimizer: optimizer,
		stepSize:  stepSize,
		gamma:     gamma,
	}
}

func (s *StepLR) Step() {
	s.lastEpoch++
	if s.lastEpoch%s.stepSize == 0 {
		s.optimizer.SetLR(s.optimizer.LR() * s.gamma)
	}
}

func (s *StepLR) GetLR() float64 {
	return s.optimizer.LR()
}

// ExponentialLR decays the learning rate by gamma every epoch.
type ExponentialLR struct {
	BaseScheduler
	optimizer LearningRater
	gamma     float64
}

func NewExponentialLR(optimizer LearningRater, gamma float64) *ExponentialLR {
	return &ExponentialLR{
		optimizer: optimizer,
		gamma:     gamma,
	}
}

func (s *ExponentialLR) Step() {
	s.optimizer.SetLR(s.optimizer.LR() * s.gamma)
}

func (s *ExponentialLR) GetLR() float64 {
	return s.optimizer.LR()
}

// ReduceLROnPlateau reduces the learning rate when the loss has stopped
// improving.
type ReduceLROnPlateau struct {
	BaseScheduler
	optimizer LearningRater
	factor    float64
	patience  int
	threshold float64
	cooldown  int
	minLR     float64

	bestLoss        float64
	numBadEpochs    int
	cooldownCounter int
}

func NewReduceLROnPlateau(optimizer LearningRater, factor float64, patience int, threshold float64, minLR float64) *ReduceLROnPlateau {
	return &ReduceLROnPlateau{
		optimizer: optimizer,
		factor:    factor,
		patience:  patience,
		threshold: threshold,
		minLR:     minLR,
		bestLoss:  math.MaxFloat64,
	}
}

func (s *ReduceLROnPlateau) StepWithLoss(currentLoss float64) {
	if s.cooldownCounter > 0 {
		s.cooldownCounter--
		return
	}

	if currentLoss < s.bestLoss-s.threshold {
		s.bestLoss = currentLoss
		s.numBadEpochs = 0
	} else {
		s.numBadEpochs++
	}

	if s.numBadEpochs >= s.patience {
		newLR := s.optimizer.LR() * s.factor
		if newLR < s.minLR {
			newLR = s.minLR
		}
		s.optimizer.SetLR(newLR)
		s.numBadEpochs = 0
		s.cooldownCounter = s.cooldown
	}
}

func (s *ReduceLROnPlateau) GetLR() float64 {
	return s.optimizer.LR()
}

// CosineAnnealingLR anneals the learning rate from its initial value down
// to minLR over tMax epochs following a half cosine.
type CosineAnnealingLR struct {
	BaseScheduler
	optimizer LearningRater
	tMax      int
	minLR     float64
	initialLR float64
	lastEpoch int
}

func NewCosineAnnealingLR(optimizer LearningRater, tMax int, minLR float64) *CosineAnnealingLR {
	return &CosineAnnealingLR{
		optimizer: optimizer,
		tMax:      tMax,
		minLR:     minLR,
		initialLR: optimizer.LR(),
	}
}

func (s *CosineAnnealingLR) Step() {
	s.lastEpoch++
	t := float64(s.lastEpoch)
	if s.lastEpoch > s.tMax {
		t = float64(s.tMax)
	}
	lr := s.minLR + (s.initialLR-s.minLR)*(1+math.Cos(math.Pi*t/float64(s.tMax)))/2
	s.optimizer.SetLR(lr)
}

func (s *CosineAnnealingLR) GetLR() float64 {
	return s.optimizer.LR()
}
