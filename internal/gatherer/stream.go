package gatherer

import (
	"github.com/programme-lv/runner/api"
	"github.com/programme-lv/runner/internal/models"
)

// Publisher delivers one streamed api message. Delivery failures are the
// publisher's to log; a run never stops because a listener went away.
type Publisher interface {
	Publish(msg any)
}

// Streamer converts events into api messages for a Publisher.
type Streamer struct {
	evalUuid string
	pub      Publisher
}

func NewStreamer(evalUuid string, pub Publisher) *Streamer {
	return &Streamer{evalUuid: evalUuid, pub: pub}
}

func (s *Streamer) StartJob(systemInfo string) {
	s.pub.Publish(api.NewStartJob(s.evalUuid, systemInfo))
}

func (s *Streamer) StartCompile() {
	s.pub.Publish(api.NewStartCompile(s.evalUuid))
}

func (s *Streamer) FinishCompile(res models.CompileResult) {
	s.pub.Publish(api.NewFinishCompile(s.evalUuid, res.Success, res.Diagnostic))
}

func (s *Streamer) ReachTest(test models.TestCase) {
	s.pub.Publish(api.NewReachTest(s.evalUuid, test.Id, test.Input, test.ExpectedOutput))
}

func (s *Streamer) FinishTest(res models.TestResult) {
	s.pub.Publish(api.NewFinishTest(s.evalUuid, ToTestResult(res)))
}

func (s *Streamer) FinishJob(res *models.ExecutionResult, err error) {
	status, msg := Status(res, err)
	s.pub.Publish(api.NewFinishJob(s.evalUuid, msg, status == api.CompileError, status == api.InternalError))
}
