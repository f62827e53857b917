package opt

import (
	"math"

	log "github.com/sirupsen/logrus"
)

// Callback observes the optimizer's epoch and batch loop. OnEpochEnd may
// return true to stop training after the current epoch.
type Callback interface {
	OnTrainBegin(f Function)
	OnTrainEnd(f Function)
	OnEpochBegin(epoch int, f Function)
	OnEpochEnd(epoch int, loss float64, f Function) bool
	OnBatchBegin(batch int, f Function)
	OnBatchEnd(batch int, loss float64, f Function)
}

// BaseCallback provides default empty implementations for Callback.
type BaseCallback struct{}

func (c BaseCallback) OnTrainBegin(f Function)                         {}
func (c BaseCallback) OnTrainEnd(f Function)                           {}
func (c BaseCallback) OnEpochBegin(epoch int, f Function)              {}
func (c BaseCallback) OnEpochEnd(epoch int, loss float64, f Function) bool { return false }
func (c BaseCallback) OnBatchBegin(batch int, f Function)              {}
func (c BaseCallback) OnBatchEnd(batch int, loss float64, f Function)  {}

// Saver is anything that can persist itself to a file; the network type
// satisfies it, which is what ModelCheckpoint snapshots.
type Saver interface {
	Save(path string) error
}

// EarlyStopping stops training when the epoch loss has stopped improving.
type EarlyStopping struct {
	BaseCallback
	Patience  int
	Threshold float64

	bestLoss     float64
	numBadEpochs int
	Stopped      bool
}

// NewEarlyStopping creates an EarlyStopping callback that stops after
// patience epochs without an improvement larger than threshold.
func NewEarlyStopping(patience int, threshold float64) *EarlyStopping {
	return &EarlyStopping{
		Patience:  patience,
		Threshold: threshold,
		bestLoss:  math.MaxFloat64,
	}
}

func (c *EarlyStopping) OnEpochEnd(epoch int, loss float64, f Function) bool {
	if loss < c.bestLoss-c.Threshold {
		c.bestLoss = loss
		c.numBadEpochs = 0
		return false
	}
	c.numBadEpochs++
	if c.numBadEpochs >= c.Patience {
		log.WithFields(log.Fields{
			"epoch": epoch,
			"loss":  loss,
		}).Infof("early stopping: no improvement for %d epochs", c.Patience)
		c.Stopped = true
		return true
	}
	return false
}

// ModelCheckpoint saves the model after every epoch that improves on the
// best loss seen so far. The objective must implement Saver; otherwise the
// callback does nothing.
type ModelCheckpoint struct {
	BaseCallback
	Filename string

	bestLoss float64
}

// NewModelCheckpoint creates a ModelCheckpoint writing to filename.
func NewModelCheckpoint(filename string) *ModelCheckpoint {
	return &ModelCheckpoint{
		Filename: filename,
		bestLoss: math.MaxFloat64,
	}
}

func (c *ModelCheckpoint) OnEpochEnd(epoch int, loss float64, f Function) bool {
	if loss >= c.bestLoss {
		return false
	}
	s, ok := f.(Saver)
	if !ok {
		return false
	}
	c.bestLoss = loss
	if err := s.Save(c.Filename); err != nil {
		log.WithError(err).Errorf("failed to save checkpoint to %s", c.Filename)
		return false
	}
	log.WithFields(log.Fields{
		"epoch": epoch,
		"loss":  loss,
		"file":  c.Filename,
	}).Info("checkpoint saved")
	return false
}

// Logger logs the epoch loss every Interval epochs.
type Logger struct {
	BaseCallback
	Interval int
}

func (c Logger) OnEpochEnd(epoch int, loss float64, f Function) bool {
	if c.Interval > 0 && epoch%c.Interval == 0 {
		log.WithFields(log.Fields{
			"epoch": epoch,
			"loss":  loss,
		}).Info("epoch finished")
	}
	return false
}

// SchedulerCallback drives a learning rate scheduler at the end of every
// epoch.
type SchedulerCallback struct {
	BaseCallback
	scheduler Scheduler
}

// NewSchedulerCallback wraps a scheduler so the optimizer steps it once per
// epoch.
func NewSchedulerCallback(scheduler Scheduler) *SchedulerCallback {
	return &SchedulerCallback{scheduler: scheduler}
}

func (c *SchedulerCallback) OnEpochEnd(epoch int, loss float64, f Function) bool {
	c.scheduler.Step()
	c.scheduler.StepWithLoss(loss)
	return false
}
