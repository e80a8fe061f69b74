package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/config"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/pubsub"
	"github.com/flexprice/mealsub/internal/pubsub/memory"
	"github.com/flexprice/mealsub/internal/pubsub/router"
	"github.com/flexprice/mealsub/internal/sentry"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockJobService struct {
	mock.Mock
}

func (m *mockJobService) Run(ctx context.Context, job types.JobName) (*dto.JobResult, error) {
	args := m.Called(ctx, job)
	if r := args.Get(0); r != nil {
		return r.(*dto.JobResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockJobService) ExpireSubscriptions(ctx context.Context) (*dto.JobResult, error) {
	return m.Run(ctx, types.JobExpireSubscriptions)
}

func (m *mockJobService) UnfreezeSubscriptions(ctx context.Context) (*dto.JobResult, error) {
	return m.Run(ctx, types.JobUnfreezeSubscriptions)
}

func (m *mockJobService) LockMeals(ctx context.Context) (*dto.JobResult, error) {
	return m.Run(ctx, types.JobLockMeals)
}

func (m *mockJobService) AutoRenewSubscriptions(ctx context.Context) (*dto.JobResult, error) {
	return m.Run(ctx, types.JobAutoRenewSubscriptions)
}

type JobsSuite struct {
	suite.Suite
	ctx    context.Context
	cfg    *config.Configuration
	logger *logger.Logger
	ps     pubsub.PubSub
	queue  Queue
	locker *LocalLocker
	svc    *mockJobService
	worker *Worker
}

func TestJobs(t *testing.T) {
	suite.Run(t, new(JobsSuite))
}

func (s *JobsSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = config.GetDefaultConfig()
	s.cfg.Jobs.RetryInterval = 10 * time.Millisecond
	s.cfg.Jobs.MaxRetries = 1
	s.logger = logger.NewNoopLogger()
	s.ps = memory.NewPubSub(s.logger)
	s.queue = NewQueue(s.cfg, s.logger, s.ps)
	s.locker = NewLocalLocker()
	s.svc = new(mockJobService)
	s.worker = NewWorker(s.cfg, s.logger, sentry.NewSentryService(s.cfg, s.logger), s.svc, s.locker)
}

func (s *JobsSuite) TearDownTest() {
	s.Require().NoError(s.ps.Close())
}

func (s *JobsSuite) subscribe(job types.JobName) <-chan *message.Message {
	ch, err := s.ps.Subscribe(s.ctx, s.cfg.Jobs.Topic(job))
	s.Require().NoError(err)
	return ch
}

func (s *JobsSuite) receive(ch <-chan *message.Message) *message.Message {
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for job message")
		return nil
	}
}

func (s *JobsSuite) TestEnqueue_PublishesOnJobTopic() {
	ch := s.subscribe(types.JobLockMeals)

	id, err := s.queue.Enqueue(s.ctx, types.JobLockMeals, RequestedByOperator)
	s.Require().NoError(err)
	s.True(strings.HasPrefix(id, types.UUID_PREFIX_JOB+"_"))

	msg := s.receive(ch)
	s.Equal(id, msg.UUID)
	s.Equal(string(types.JobLockMeals), msg.Metadata.Get("job"))

	decoded, err := decodeMessage(msg)
	s.Require().NoError(err)
	s.Equal(types.JobLockMeals, decoded.Job)
	s.Equal(RequestedByOperator, decoded.RequestedBy)
	s.Equal(decoded.RequestedAt.Format(time.DateOnly), decoded.RunDate)
}

func (s *JobsSuite) TestEnqueue_UnknownJob() {
	_, err := s.queue.Enqueue(s.ctx, types.JobName("send-invoices"), RequestedByOperator)
	s.True(ierr.IsValidation(err))
}

func (s *JobsSuite) TestEnqueueDaily_PublishesEveryJob() {
	channels := make(map[types.JobName]<-chan *message.Message)
	for _, job := range types.DailyJobs {
		channels[job] = s.subscribe(job)
	}

	ids, err := EnqueueDaily(s.ctx, s.queue, RequestedByScheduler)
	s.Require().NoError(err)
	s.Len(ids, len(types.DailyJobs))

	for job, ch := range channels {
		decoded, err := decodeMessage(s.receive(ch))
		s.Require().NoError(err)
		s.Equal(job, decoded.Job)
	}
}

func (s *JobsSuite) TestDecodeMessage_Malformed() {
	_, err := decodeMessage(message.NewMessage("bad", []byte("{not json")))
	s.True(ierr.IsValidation(err))

	_, err = decodeMessage(message.NewMessage("unknown", []byte(`{"job":"send-invoices"}`)))
	s.True(ierr.IsValidation(err))
}

func (s *JobsSuite) TestLocalLocker() {
	release, ok, err := s.locker.TryLock(s.ctx, "job:lock-meals")
	s.Require().NoError(err)
	s.True(ok)

	_, ok, err = s.locker.TryLock(s.ctx, "job:lock-meals")
	s.Require().NoError(err)
	s.False(ok)

	_, ok, _ = s.locker.TryLock(s.ctx, "job:expire-subscriptions")
	s.True(ok)

	s.NoError(release(s.ctx))
	_, ok, _ = s.locker.TryLock(s.ctx, "job:lock-meals")
	s.True(ok)
}

func (s *JobsSuite) TestProcess_RunsJobUnderLock() {
	s.svc.On("Run", mock.Anything, types.JobExpireSubscriptions).
		Return(&dto.JobResult{Job: types.JobExpireSubscriptions, Affected: 3}, nil).Once()

	result, err := s.worker.Process(s.ctx, types.JobExpireSubscriptions, &Message{Job: types.JobExpireSubscriptions})
	s.Require().NoError(err)
	s.Equal(3, result.Affected)

	// released afterwards
	_, ok, _ := s.locker.TryLock(s.ctx, "job:"+types.JobExpireSubscriptions.String())
	s.True(ok)
	s.svc.AssertExpectations(s.T())
}

func (s *JobsSuite) TestProcess_SkipsWhenLocked() {
	_, ok, _ := s.locker.TryLock(s.ctx, "job:"+types.JobAutoRenewSubscriptions.String())
	s.Require().True(ok)

	result, err := s.worker.Process(s.ctx, types.JobAutoRenewSubscriptions, &Message{Job: types.JobAutoRenewSubscriptions})
	s.Require().NoError(err)
	s.Equal(0, result.Affected)
	s.svc.AssertNotCalled(s.T(), "Run", mock.Anything, mock.Anything)
}

func (s *JobsSuite) TestProcess_ReturnsJobError() {
	boom := errors.New("database unavailable")
	s.svc.On("Run", mock.Anything, types.JobLockMeals).Return(nil, boom).Once()

	_, err := s.worker.Process(s.ctx, types.JobLockMeals, &Message{Job: types.JobLockMeals})
	s.ErrorIs(err, boom)

	_, ok, _ := s.locker.TryLock(s.ctx, "job:"+types.JobLockMeals.String())
	s.True(ok)
}

func (s *JobsSuite) TestRouter_DeliversEnqueuedJob() {
	r, err := router.NewRouter(s.cfg, s.logger, sentry.NewSentryService(s.cfg, s.logger), s.ps)
	s.Require().NoError(err)
	s.worker.RegisterHandlers(r)

	done := make(chan types.JobName, 1)
	s.svc.On("Run", mock.Anything, types.JobUnfreezeSubscriptions).
		Run(func(args mock.Arguments) { done <- args.Get(1).(types.JobName) }).
		Return(&dto.JobResult{Job: types.JobUnfreezeSubscriptions, Affected: 1}, nil).Once()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	go func() { _ = r.Run(ctx) }()
	<-r.Running()

	_, err = s.queue.Enqueue(s.ctx, types.JobUnfreezeSubscriptions, RequestedByOperator)
	s.Require().NoError(err)

	select {
	case job := <-done:
		s.Equal(types.JobUnfreezeSubscriptions, job)
	case <-time.After(5 * time.Second):
		s.FailNow("job was not processed")
	}
	s.NoError(r.Close())
}
