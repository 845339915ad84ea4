package lock_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nfc.app/facilitator/internal/lock"
)

var _ = Describe("KeyedMutex", func() {
	var (
		ctx context.Context
		m   *lock.KeyedMutex
	)

	BeforeEach(func() {
		ctx = context.Background()
		m = lock.NewKeyedMutex()
	})

	It("blocks a second holder of the same key", func() {
		unlock, err := m.Lock(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())
		defer unlock()

		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		_, err = m.Lock(tctx, "c1")
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("does not block other keys", func() {
		unlock, err := m.Lock(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())
		defer unlock()

		tctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		other, err := m.Lock(tctx, "c2")
		Expect(err).NotTo(HaveOccurred())
		other()
	})

	It("hands the lock over on unlock", func() {
		unlock, err := m.Lock(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())

		acquired := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			next, err := m.Lock(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			close(acquired)
			next()
		}()

		Consistently(acquired, 20*time.Millisecond).ShouldNot(BeClosed())
		unlock()
		Eventually(acquired).Should(BeClosed())
	})

	It("serializes concurrent holders", func() {
		var (
			wg      sync.WaitGroup
			inside  int
			maxSeen int
			guard   sync.Mutex
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := m.Lock(ctx, "c1")
				if err != nil {
					return
				}
				guard.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				guard.Unlock()
				time.Sleep(time.Millisecond)
				guard.Lock()
				inside--
				guard.Unlock()
				unlock()
			}()
		}
		wg.Wait()
		Expect(maxSeen).To(Equal(1))
	})

	It("forgets keys nobody holds", func() {
		unlock, err := m.Lock(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Len()).To(Equal(1))
		unlock()
		unlock()
		Expect(m.Len()).To(BeZero())
	})
})
