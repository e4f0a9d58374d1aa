package worker_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/programme-lv/runner/api"
	"github.com/programme-lv/runner/internal/checkers"
	"github.com/programme-lv/runner/internal/compiler"
	"github.com/programme-lv/runner/internal/filestore"
	"github.com/programme-lv/runner/internal/models"
	"github.com/programme-lv/runner/internal/strategy"
	"github.com/programme-lv/runner/internal/workdir"
	"github.com/programme-lv/runner/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu       sync.Mutex
	pending  []types.Message
	deleted  []string
	sent     map[string][]string
	received chan struct{}
}

func newFakeQueue(bodies ...string) *fakeQueue {
	q := &fakeQueue{sent: map[string][]string{}, received: make(chan struct{}, 16)}
	for i, b := range bodies {
		q.pending = append(q.pending, types.Message{
			Body:          aws.String(b),
			ReceiptHandle: aws.String(string(rune('a' + i))),
		})
	}
	return q
}

func (q *fakeQueue) ReceiveMessage(ctx context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	q.mu.Lock()
	msgs := q.pending
	q.pending = nil
	q.mu.Unlock()
	if len(msgs) == 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return &sqs.ReceiveMessageOutput{Messages: msgs}, nil
}

func (q *fakeQueue) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, *in.ReceiptHandle)
	q.received <- struct{}{}
	return &sqs.DeleteMessageOutput{}, nil
}

func (q *fakeQueue) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent[*in.QueueUrl] = append(q.sent[*in.QueueUrl], *in.MessageBody)
	return &sqs.SendMessageOutput{}, nil
}

func newWorker(t *testing.T, q worker.Queue) (*worker.Worker, *workdir.Manager) {
	t.Helper()
	wd, err := workdir.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	files, err := filestore.New(t.TempDir(), nil, nil)
	require.NoError(t, err)
	deps := strategy.Deps{
		Workdirs:     wd,
		Checkers:     checkers.NewRegistry(),
		Compilers:    compiler.NewRegistry(time.Second, nil),
		CompilerPath: func(models.CompilerType) string { return "" },
	}
	return worker.New(worker.Options{
		Queue:       q,
		RequestUrl:  "https://sqs.example/req",
		Strategies:  strategy.NewRegistry(deps),
		Files:       files,
		Concurrency: 2,
	}), wd
}

func str(s string) *string { return &s }

func TestHandle_CheckOnly(t *testing.T) {
	q := newFakeQueue()
	w, wd := newWorker(t, q)

	resp := w.Handle(context.Background(), api.ExecReq{
		EvalUuid: "eval-1",
		Strategy: "CheckOnly",
		Code:     "3\n",
		Tests: []api.ReqTest{
			{ID: 2, InContent: str("1 2\n"), AnsContent: str("3\n")},
			{ID: 1, InContent: str("2 2\n"), AnsContent: str("4\n")},
		},
		Checker:        api.Checker{Type: "trim"},
		TimeLimitMs:    1000,
		MemoryLimitKiB: 65536,
		ResSqsUrl:      "https://sqs.example/resp",
	})

	assert.Equal(t, api.Success, resp.Status)
	require.Len(t, resp.TestResults, 2)
	assert.Equal(t, 2, resp.TestResults[0].TestId)
	assert.Equal(t, "correct_answer", resp.TestResults[0].Verdict)
	assert.Equal(t, "wrong_answer", resp.TestResults[1].Verdict)

	sent := q.sent["https://sqs.example/resp"]
	require.NotEmpty(t, sent)
	var final api.ExecResponse
	require.NoError(t, json.Unmarshal([]byte(sent[len(sent)-1]), &final))
	assert.Equal(t, "eval-1", final.EvalUuid)
	assert.Equal(t, api.Success, final.Status)

	wd.Wait()
}

func TestHandle_ConfigurationFaults(t *testing.T) {
	w, _ := newWorker(t, newFakeQueue())

	resp := w.Handle(context.Background(), api.ExecReq{Strategy: "no-such-strategy", TimeLimitMs: 1, MemoryLimitKiB: 1})
	assert.Equal(t, api.InternalError, resp.Status)
	require.NotNil(t, resp.ErrorMessage)
	assert.Contains(t, *resp.ErrorMessage, "unknown execution strategy")
	assert.NotEmpty(t, resp.EvalUuid)

	resp = w.Handle(context.Background(), api.ExecReq{
		Strategy:       "check-only",
		Tests:          []api.ReqTest{{ID: 1, InContent: str("")}},
		TimeLimitMs:    1000,
		MemoryLimitKiB: 1024,
	})
	assert.Equal(t, api.InternalError, resp.Status)

	resp = w.Handle(context.Background(), api.ExecReq{
		Strategy:       "check-only",
		Tests:          []api.ReqTest{{ID: 1, InContent: str(""), AnsContent: str("")}},
		Checker:        api.Checker{Type: "no-such-checker"},
		TimeLimitMs:    1000,
		MemoryLimitKiB: 1024,
	})
	assert.Equal(t, api.InternalError, resp.Status)
	assert.False(t, resp.Compilation.Success)
}

func TestHandle_RawInput(t *testing.T) {
	w, _ := newWorker(t, newFakeQueue())

	resp := w.Handle(context.Background(), api.ExecReq{
		Strategy:       "check-only",
		Code:           "hello",
		RawInput:       str("ignored"),
		TimeLimitMs:    1000,
		MemoryLimitKiB: 1024,
	})
	assert.Equal(t, api.Success, resp.Status)
	require.NotNil(t, resp.Raw)
	assert.Equal(t, "hello", resp.Raw.Stdout)
}

func TestRun_ConsumesAndDeletes(t *testing.T) {
	req, err := json.Marshal(api.ExecReq{
		Strategy:       "do-nothing",
		TimeLimitMs:    1000,
		MemoryLimitKiB: 1024,
		RawInput:       str(""),
	})
	require.NoError(t, err)
	q := newFakeQueue(string(req), "{not json")
	w, _ := newWorker(t, q)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 2; i++ {
		select {
		case <-q.received:
		case <-time.After(5 * time.Second):
			t.Fatal("message was not deleted")
		}
	}
	cancel()
	require.NoError(t, <-done)

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, q.deleted)
}

func TestHandle_DefaultResponseQueue(t *testing.T) {
	q := newFakeQueue()
	wd, err := workdir.NewManager(t.TempDir(), nil)
	require.NoError(t, err)
	w := worker.New(worker.Options{
		Queue:       q,
		RequestUrl:  "https://sqs.example/req",
		ResponseUrl: "https://sqs.example/default-resp",
		Strategies: strategy.NewRegistry(strategy.Deps{
			Workdirs:     wd,
			Checkers:     checkers.NewRegistry(),
			Compilers:    compiler.NewRegistry(time.Second, nil),
			CompilerPath: func(models.CompilerType) string { return "" },
		}),
	})

	resp := w.Handle(context.Background(), api.ExecReq{
		EvalUuid:       "eval-2",
		Strategy:       "check-only",
		Code:           "ok",
		RawInput:       str(""),
		TimeLimitMs:    1000,
		MemoryLimitKiB: 1024,
	})
	assert.Equal(t, api.Success, resp.Status)

	q.mu.Lock()
	sent := q.sent["https://sqs.example/default-resp"]
	q.mu.Unlock()
	require.NotEmpty(t, sent)
	var final api.ExecResponse
	require.NoError(t, json.Unmarshal([]byte(sent[len(sent)-1]), &final))
	assert.Equal(t, "eval-2", final.EvalUuid)

	wd.Wait()
}
