package service

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"token_farm/internal/domain/entity"
	"token_farm/internal/infrastructure/configloader"
	"token_farm/internal/pkg/testutil/fakewallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"
)

type OrchestratorTestSuite struct {
	suite.Suite
	f *fixture
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.f.resolve(s.T())
}

func (s *OrchestratorTestSuite) orchestrator(cfg configloader.TransactionsConfig) *TransactionOrchestrator {
	o := NewTransactionOrchestrator(s.f.provider, s.f.store, cfg, s.f.metrics, s.f.log)
	s.T().Cleanup(o.Close)
	return o
}

func (s *OrchestratorTestSuite) assertIdle() {
	st := s.f.store.Snapshot()
	s.Equal(entity.PhaseIdle, st.Phase)
	s.False(st.Loading)
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func (s *OrchestratorTestSuite) TestStakeApprovesThenStakes() {
	o := s.orchestrator(testTxConfig())

	steps, err := o.StakeTokens(context.Background(), "100")
	s.Require().NoError(err)
	s.Require().Len(steps, 2)

	sent := s.f.wallet.Sent()
	s.Require().Len(sent, 2)

	s.Equal("approve", sent[0].Method)
	s.Equal(daiAddr, sent[0].To)
	s.Equal(testAccount, sent[0].From)
	s.Equal(farmAddr, sent[0].Args[0])
	s.Equal(big.NewInt(100), sent[0].Args[1])

	s.Equal("stakeTokens", sent[1].Method)
	s.Equal(farmAddr, sent[1].To)
	s.Equal(testAccount, sent[1].From)
	s.Equal(big.NewInt(100), sent[1].Args[0])

	s.Equal(entity.TxApprove, steps[0].Kind)
	s.Equal(entity.TxSubmitted, steps[0].Status)
	s.Equal(sent[0].Hash.Hex(), steps[0].Hash)
	s.Equal(entity.TxStake, steps[1].Kind)
	s.Equal("100", steps[1].AmountString())

	s.Equal(1, s.f.metrics.tx(entity.TxApprove, outcomeSubmitted))
	s.Equal(1, s.f.metrics.tx(entity.TxStake, outcomeSubmitted))
	s.assertIdle()
}

func (s *OrchestratorTestSuite) TestStakeNeverBeforeApprovalAcknowledged() {
	amounts := []string{"1", "100", "1000000000000000000000000"}
	for _, amount := range amounts {
		s.SetupTest()
		o := s.orchestrator(testTxConfig())

		release := make(chan struct{})
		approvalSeen := make(chan struct{})
		var once sync.Once
		var stakeSentBeforeAck bool
		s.f.wallet.OnSend(func(tx fakewallet.SentTx) error {
			switch tx.Method {
			case "approve":
				once.Do(func() { close(approvalSeen) })
				<-release
			case "stakeTokens":
				// the approval is recorded only once acknowledged
				stakeSentBeforeAck = len(s.f.wallet.Sent()) == 0
			}
			return nil
		})

		done := make(chan error, 1)
		go func() {
			_, err := o.StakeTokens(context.Background(), amount)
			done <- err
		}()

		<-approvalSeen
		s.Equal(entity.PhaseAwaitingApproval, s.f.store.Snapshot().Phase)
		s.True(s.f.store.Snapshot().Loading)
		s.Empty(s.f.wallet.Sent())
		close(release)

		s.Require().NoError(<-done)
		s.False(stakeSentBeforeAck, "amount %s", amount)
		sent := s.f.wallet.Sent()
		s.Require().Len(sent, 2)
		s.Equal("approve", sent[0].Method)
		s.Equal("stakeTokens", sent[1].Method)
		s.assertIdle()
	}
}

func (s *OrchestratorTestSuite) TestApprovalRejected() {
	o := s.orchestrator(testTxConfig())
	var attempts []string
	s.f.wallet.OnSend(func(tx fakewallet.SentTx) error {
		attempts = append(attempts, tx.Method)
		if tx.Method == "approve" {
			return fakewallet.UserRejected()
		}
		return nil
	})

	steps, err := o.StakeTokens(context.Background(), "100")
	s.ErrorIs(err, entity.ErrTransactionRejected)
	s.Equal([]string{"approve"}, attempts, "stake is never submitted")
	s.Empty(s.f.wallet.Sent())
	s.Require().Len(steps, 1)
	s.Equal(entity.TxFailed, steps[0].Status)
	s.NotEmpty(steps[0].Error)
	s.Empty(o.InFlight())
	s.Equal(1, s.f.metrics.tx(entity.TxApprove, outcomeRejected))
	s.assertIdle()
}

func (s *OrchestratorTestSuite) TestStakeSubmissionFailure() {
	o := s.orchestrator(testTxConfig())
	s.f.wallet.OnSend(func(tx fakewallet.SentTx) error {
		if tx.Method == "stakeTokens" {
			return &fakewallet.RPCError{Code: -32000, Message: "gas required exceeds allowance"}
		}
		return nil
	})

	steps, err := o.StakeTokens(context.Background(), "5")
	s.ErrorIs(err, entity.ErrTransactionSubmissionFailed)
	s.Require().Len(steps, 2)
	s.Equal(entity.TxSubmitted, steps[0].Status)
	s.Equal(entity.TxFailed, steps[1].Status)
	s.Len(s.f.wallet.Sent(), 1)
	s.assertIdle()
}

func (s *OrchestratorTestSuite) TestUnstakeSingleTransactionWithoutAmount() {
	s.f.wallet.SetValue(farmAddr, "stakingBalance", testAccount, big.NewInt(50))
	o := s.orchestrator(testTxConfig())

	steps, err := o.UnstakeTokens(context.Background())
	s.Require().NoError(err)
	s.Require().Len(steps, 1)
	s.Equal(entity.TxUnstake, steps[0].Kind)
	s.Empty(steps[0].AmountString())

	sent := s.f.wallet.Sent()
	s.Require().Len(sent, 1)
	s.Equal("unstakeTokens", sent[0].Method)
	s.Equal(farmAddr, sent[0].To)
	s.Equal(testAccount, sent[0].From)
	s.Empty(sent[0].Args)
	s.assertIdle()
}

func (s *OrchestratorTestSuite) TestInvalidAmounts() {
	o := s.orchestrator(testTxConfig())
	for _, amount := range []string{"", "0", "-5", "abc", "1.5", "0x10"} {
		_, err := o.StakeTokens(context.Background(), amount)
		s.ErrorIs(err, entity.ErrInvalidAmount, "amount %q", amount)
	}
	s.Empty(s.f.wallet.Sent())
	s.assertIdle()
}

func (s *OrchestratorTestSuite) TestMissingContracts() {
	s.f = newFixture(s.T())
	s.f.resolve(s.T(), entity.RoleFarm)
	o := s.orchestrator(testTxConfig())

	_, err := o.StakeTokens(context.Background(), "1")
	s.ErrorIs(err, entity.ErrContractUnavailable)
	_, err = o.UnstakeTokens(context.Background())
	s.ErrorIs(err, entity.ErrContractUnavailable)
	s.Empty(s.f.wallet.Sent())
	s.assertIdle()
}

func (s *OrchestratorTestSuite) TestBusyGuard() {
	o := s.orchestrator(testTxConfig())
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	s.f.wallet.OnSend(func(tx fakewallet.SentTx) error {
		if tx.Method == "approve" {
			entered <- struct{}{}
			<-release
		}
		return nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := o.StakeTokens(context.Background(), "10")
		done <- err
	}()
	<-entered

	_, err := o.StakeTokens(context.Background(), "10")
	s.ErrorIs(err, entity.ErrOrchestratorBusy)
	_, err = o.UnstakeTokens(context.Background())
	s.ErrorIs(err, entity.ErrOrchestratorBusy)
	s.True(s.f.store.Snapshot().Loading, "the running flow still owns loading")

	close(release)
	s.Require().NoError(<-done)
	s.assertIdle()
}

func (s *OrchestratorTestSuite) TestAwaitReceiptWaitsForMinedApproval() {
	cfg := testTxConfig()
	cfg.AwaitReceipt = true
	o := s.orchestrator(cfg)
	s.f.wallet.AutoMine(true)

	steps, err := o.StakeTokens(context.Background(), "3")
	s.Require().NoError(err)
	s.Require().Len(steps, 2)
	s.Equal(entity.TxConfirmed, steps[0].Status)
	s.Equal(1, s.f.metrics.tx(entity.TxApprove, outcomeConfirmed))
	s.assertIdle()
}

func (s *OrchestratorTestSuite) TestAwaitReceiptRevertedApproval() {
	cfg := testTxConfig()
	cfg.AwaitReceipt = true
	o := s.orchestrator(cfg)

	go func() {
		for i := 0; i < 200; i++ {
			if sent := s.f.wallet.Sent(); len(sent) > 0 {
				s.f.wallet.Mine(sent[0].Hash, false)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	steps, err := o.StakeTokens(context.Background(), "3")
	s.ErrorIs(err, entity.ErrTransactionReverted)
	s.Require().Len(steps, 1)
	s.Equal(entity.TxFailed, steps[0].Status)
	s.Len(s.f.wallet.Sent(), 1, "stake is never submitted")
	s.assertIdle()
}

func (s *OrchestratorTestSuite) TestConfirmationTracking() {
	cfg := testTxConfig()
	cfg.SkipConfirmations = false
	o := s.orchestrator(cfg)

	var mu sync.Mutex
	confirmed := map[entity.TransactionKind]bool{}
	o.OnConfirmed(func(ctx context.Context, step entity.TransactionStep) {
		mu.Lock()
		defer mu.Unlock()
		confirmed[step.Kind] = true
	})

	steps, err := o.StakeTokens(context.Background(), "8")
	s.Require().NoError(err)
	s.Len(o.InFlight(), 2)

	for _, step := range steps {
		s.f.wallet.Mine(common.HexToHash(step.Hash), true)
	}

	s.Eventually(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return confirmed[entity.TxApprove] && confirmed[entity.TxStake]
	}, 2*time.Second, 10*time.Millisecond)
	s.Eventually(func() bool { return len(o.InFlight()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func (s *OrchestratorTestSuite) TestInFlightKeepsSubmittedSteps() {
	o := s.orchestrator(testTxConfig())

	_, err := o.StakeTokens(context.Background(), "8")
	s.Require().NoError(err)

	inFlight := o.InFlight()
	s.Require().Len(inFlight, 2)
	s.Equal(entity.TxApprove, inFlight[0].Kind)
	s.Equal(entity.TxStake, inFlight[1].Kind)
}

func (s *OrchestratorTestSuite) TestSubmissionTimeout() {
	s.f.wallet.OnSend(func(tx fakewallet.SentTx) error {
		return errors.New("context deadline exceeded")
	})
	o := s.orchestrator(testTxConfig())

	_, err := o.UnstakeTokens(context.Background())
	s.ErrorIs(err, entity.ErrProviderTimeout)
	s.Equal(1, s.f.metrics.tx(entity.TxUnstake, outcomeTimeout))
	s.assertIdle()
}

func (s *OrchestratorTestSuite) TestCloseStopsTrackingWithoutFailingSteps() {
	cfg := testTxConfig()
	cfg.SkipConfirmations = false
	o := s.orchestrator(cfg)

	steps, err := o.UnstakeTokens(context.Background())
	s.Require().NoError(err)
	s.Require().Len(steps, 1)

	o.Close()

	s.Zero(s.f.metrics.tx(entity.TxUnstake, outcomeTimeout))
	s.Zero(s.f.metrics.tx(entity.TxUnstake, outcomeFailed))
	s.Zero(s.f.metrics.tx(entity.TxUnstake, outcomeConfirmed))
	s.Equal(1, s.f.metrics.tx(entity.TxUnstake, outcomeSubmitted))
	s.Empty(s.f.store.Snapshot().Notices)

	inFlight := o.InFlight()
	s.Require().Len(inFlight, 1)
	s.Equal(steps[0].ID, inFlight[0].ID)
	s.Equal(entity.TxSubmitted, inFlight[0].Status)
}

func (s *OrchestratorTestSuite) TestAwaitReceiptCallerCancelled() {
	cfg := testTxConfig()
	cfg.AwaitReceipt = true
	o := s.orchestrator(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	s.f.wallet.OnSend(func(tx fakewallet.SentTx) error {
		if tx.Method == "approve" {
			time.AfterFunc(30*time.Millisecond, cancel)
		}
		return nil
	})

	steps, err := o.StakeTokens(ctx, "5")
	s.ErrorIs(err, context.Canceled)
	s.Require().Len(steps, 1)
	s.Equal(entity.TxSubmitted, steps[0].Status)
	s.Len(s.f.wallet.Sent(), 1, "stake is never sent after an unconfirmed approval")
	s.Zero(s.f.metrics.tx(entity.TxApprove, outcomeTimeout))
	s.Empty(s.f.store.Snapshot().Notices)
	s.assertIdle()
}
