package lock_test

import (
	"github.com/MatthiasKunnen/lockscreen/pkg/lock"
	"log"
	"os"
	"time"
)

func ExampleSession_logind() {
	s, err := lock.NewLogindSession(os.Getenv("XDG_SESSION_ID"))
	if err != nil {
		log.Fatalf("Failed to connect to logind session: %v", err)
	}

	lockSignal := make(chan struct{}, 1)
	unlockSignal := make(chan struct{}, 1)

	if err := s.AddLockSignal(lockSignal); err != nil {
		log.Fatalf("Failed to add lock signal: %v", err)
	}

	if err := s.AddUnlockSignal(unlockSignal); err != nil {
		log.Fatalf("Failed to add unlock signal: %v", err)
	}

	stop := time.After(10 * time.Second)
	for {
		select {
		case <-lockSignal:
			log.Println("Lock requested, start the lock screen")
			if err := s.SetLocked(true); err != nil {
				log.Printf("Failed to set LockedHint: %v", err)
			}
		case <-unlockSignal:
			log.Println("Unlock requested, stop the lock screen")
			if err := s.SetLocked(false); err != nil {
				log.Printf("Failed to clear LockedHint: %v", err)
			}
		case <-stop:
			if err := s.Close(); err != nil {
				log.Printf("Failed to close session: %v", err)
			}
			return
		}
	}
}
