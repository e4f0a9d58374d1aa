// Package worker feeds execution requests from an SQS queue into the
// strategy registry and reports results back.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/programme-lv/runner/api"
	"github.com/programme-lv/runner/internal/filestore"
	"github.com/programme-lv/runner/internal/gatherer"
	"github.com/programme-lv/runner/internal/gatherer/natsgath"
	"github.com/programme-lv/runner/internal/gatherer/respbuilder"
	"github.com/programme-lv/runner/internal/gatherer/sqsgath"
	"github.com/programme-lv/runner/internal/models"
	"github.com/programme-lv/runner/internal/strategy"
	"golang.org/x/sync/errgroup"
)

// Queue is the part of *sqs.Client the worker uses.
type Queue interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	sqsgath.Sender
}

type Options struct {
	Queue      Queue
	RequestUrl string
	// ResponseUrl receives events and responses of requests that name no
	// res_sqs_url.
	ResponseUrl string
	Strategies  *strategy.Registry
	// Files is optional; without it tests must carry inline content.
	Files *filestore.Store
	// Nats is optional. Requests with a nats_inbox stream over it when set.
	Nats        *nats.Conn
	Concurrency int
	Logger      *slog.Logger
}

type Worker struct {
	opts       Options
	logger     *slog.Logger
	systemInfo string
}

func New(opts Options) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		opts:       opts,
		logger:     logger.With("component", "worker"),
		systemInfo: systemInfo(),
	}
}

func systemInfo() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s %s/%s %s", host, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// Run polls the request queue until ctx is cancelled, then waits for the
// requests already taken to finish.
func (w *Worker) Run(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(w.opts.Concurrency)

	w.logger.Info("listening", "queue", w.opts.RequestUrl, "concurrency", w.opts.Concurrency)
	for ctx.Err() == nil {
		out, err := w.opts.Queue.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(w.opts.RequestUrl),
			MaxNumberOfMessages: int32(min(w.opts.Concurrency, 10)),
			WaitTimeSeconds:     5,
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			w.logger.Warn("failed to receive messages", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, msg := range out.Messages {
			g.Go(func() error {
				w.handleMessage(ctx, msg.Body, msg.ReceiptHandle)
				return nil
			})
		}
	}
	return g.Wait()
}

func (w *Worker) handleMessage(ctx context.Context, body, receipt *string) {
	var req api.ExecReq
	if body == nil {
		w.logger.Warn("received message without body")
	} else if err := json.Unmarshal([]byte(*body), &req); err != nil {
		w.logger.Warn("failed to unmarshal message", "error", err)
	} else {
		w.Handle(ctx, req)
	}

	// Deleted even when malformed so a poison message is not redelivered
	// forever.
	_, err := w.opts.Queue.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.opts.RequestUrl),
		ReceiptHandle: receipt,
	})
	if err != nil {
		w.logger.Warn("failed to delete message", "error", err)
	}
}

// Handle executes one request and delivers its events and final response.
func (w *Worker) Handle(ctx context.Context, req api.ExecReq) api.ExecResponse {
	if req.EvalUuid == "" {
		req.EvalUuid = uuid.NewString()
	}
	if req.ResSqsUrl == "" {
		req.ResSqsUrl = w.opts.ResponseUrl
	}
	log := w.logger.With("eval_uuid", req.EvalUuid, "strategy", req.Strategy)

	builder := respbuilder.New(req.EvalUuid)
	gs := []gatherer.JobGatherer{builder}
	if stream := w.streamer(req, log); stream != nil {
		gs = append(gs, stream)
	}
	g := gatherer.Multi(gs...)

	g.StartJob(w.systemInfo)
	res, err := w.execute(ctx, req, g)
	g.FinishJob(res, err)
	if err != nil {
		log.Error("execution failed", "error", err)
	}

	resp := builder.Response()
	w.respond(req, resp, log)
	log.Info("request finished", "status", resp.Status, "took_ms", resp.TotalTimeMs)
	return resp
}

func (w *Worker) execute(ctx context.Context, req api.ExecReq, g gatherer.JobGatherer) (*models.ExecutionResult, error) {
	s, err := w.opts.Strategies.Get(req.Strategy)
	if err != nil {
		return &models.ExecutionResult{CompilerComment: err.Error()}, err
	}
	ec, err := w.buildContext(ctx, req)
	if err != nil {
		return &models.ExecutionResult{CompilerComment: err.Error()}, err
	}
	return s.SafeExecute(ctx, ec, g)
}

func (w *Worker) buildContext(ctx context.Context, req api.ExecReq) (*models.ExecutionContext, error) {
	ct, err := models.ParseCompilerType(req.CompilerType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrInvalidContext, err)
	}

	var input models.Input
	if req.RawInput != nil {
		input = models.RawInput{Input: *req.RawInput}
	} else {
		tests, err := w.resolveTests(ctx, req.Tests)
		if err != nil {
			return nil, err
		}
		input = models.TestsInput{Tests: tests}
	}

	return models.NewExecutionContext(
		&models.Submission{
			Code:                        req.Code,
			FileContent:                 req.FileContent,
			AllowedFileExtensions:       req.AllowedFileExtensions,
			CompilerType:                ct,
			AdditionalCompilerArguments: req.CompilerArgs,
		},
		req.TimeLimitMs,
		int64(req.MemoryLimitKiB)*1024,
		models.CheckerSelector{
			Namespace: req.Checker.Namespace,
			Type:      req.Checker.Type,
			Parameter: req.Checker.Parameter,
		},
		input,
	)
}

func ref(sha, url, content *string) filestore.Ref {
	r := filestore.Ref{Content: content}
	if sha != nil {
		r.Sha256 = *sha
	}
	if url != nil {
		r.URL = *url
	}
	return r
}

func (w *Worker) resolveTests(ctx context.Context, reqTests []api.ReqTest) ([]models.TestCase, error) {
	if w.opts.Files != nil {
		for _, t := range reqTests {
			w.opts.Files.Prefetch(ctx, ref(t.InSha256, t.InUrl, t.InContent), ref(t.AnsSha256, t.AnsUrl, t.AnsContent))
		}
	}

	tests := make([]models.TestCase, 0, len(reqTests))
	for _, t := range reqTests {
		in, err := w.file(ctx, ref(t.InSha256, t.InUrl, t.InContent))
		if err != nil {
			return nil, fmt.Errorf("failed to get input of test %d: %w", t.ID, err)
		}
		ans, err := w.file(ctx, ref(t.AnsSha256, t.AnsUrl, t.AnsContent))
		if err != nil {
			return nil, fmt.Errorf("failed to get answer of test %d: %w", t.ID, err)
		}
		tests = append(tests, models.TestCase{
			Id:             t.ID,
			Input:          string(in),
			ExpectedOutput: string(ans),
			IsTrialTest:    t.Trial,
		})
	}
	return tests, nil
}

// file resolves a reference. Without a file store only inline content works.
func (w *Worker) file(ctx context.Context, r filestore.Ref) ([]byte, error) {
	if w.opts.Files != nil {
		return w.opts.Files.Get(ctx, r)
	}
	if r.Content == nil {
		return nil, errors.New("no file store configured")
	}
	return []byte(*r.Content), nil
}

// streamer picks NATS when the request names an inbox and a connection is
// available, otherwise the response queue.
func (w *Worker) streamer(req api.ExecReq, log *slog.Logger) gatherer.JobGatherer {
	switch {
	case req.NatsInbox != "" && w.opts.Nats != nil:
		return natsgath.New(w.opts.Nats, req.EvalUuid, req.NatsInbox, log)
	case req.ResSqsUrl != "" && w.opts.Queue != nil:
		return sqsgath.New(w.opts.Queue, req.EvalUuid, req.ResSqsUrl, log)
	}
	return nil
}

func (w *Worker) respond(req api.ExecReq, resp api.ExecResponse, log *slog.Logger) {
	if req.ResSqsUrl == "" || w.opts.Queue == nil {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		log.Error("failed to marshal response", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = w.opts.Queue.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(req.ResSqsUrl),
		MessageBody: aws.String(string(b)),
	})
	if err != nil {
		log.Warn("failed to send response", "error", err)
	}
}
