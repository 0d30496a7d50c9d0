// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// Metrics demo: drives a small announcement/session/message exchange
// between two in-process ASP identities and exposes the resulting
// Prometheus metrics over HTTP.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agraphon-io/vault/asp"
	vaultcrypto "github.com/agraphon-io/vault/crypto"
	"github.com/agraphon-io/vault/internal/metrics"
)

func main() {
	fmt.Println("vault metrics demo server")
	fmt.Println("==========================")
	fmt.Println()

	metricsAddr := ":9090"
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		fmt.Printf("metrics server listening on http://localhost%s/metrics\n", metricsAddr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("metrics server error: %v", err)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	fmt.Println()

	fmt.Println("generating sample metrics...")
	fmt.Println()

	if err := simulateActivity(); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	fmt.Println()
	fmt.Println("demo running, access metrics at:")
	fmt.Printf("   http://localhost%s/metrics\n", metricsAddr)
	fmt.Println()
	fmt.Println("sample queries:")
	fmt.Printf("   curl localhost%s/metrics | grep vault_announcements\n", metricsAddr)
	fmt.Printf("   curl localhost%s/metrics | grep vault_sessions\n", metricsAddr)
	fmt.Printf("   curl localhost%s/metrics | grep vault_crypto\n", metricsAddr)
	fmt.Println()
	fmt.Println("press ctrl+c to stop...")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nshutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	fmt.Println("goodbye")
}

func simulateActivity() error {
	fmt.Println("  establishing a session between two identities...")

	kem := asp.NewMLKEM768()
	alicePub, aliceSec, err := asp.GenerateUserKeys(vaultcrypto.SystemRNG, kem)
	if err != nil {
		return fmt.Errorf("generate alice keys: %w", err)
	}
	bobPub, bobSec, err := asp.GenerateUserKeys(vaultcrypto.SystemRNG, kem)
	if err != nil {
		return fmt.Errorf("generate bob keys: %w", err)
	}

	config := asp.DefaultSessionManagerConfig()
	alice := asp.NewSessionManager(config, nil)
	bob := asp.NewSessionManager(config, nil)

	start := time.Now()
	aliceAnnouncement, err := alice.EstablishOutgoingSession(bobPub, alicePub, aliceSec, nil)
	if err != nil {
		metrics.AnnouncementsRejected.WithLabelValues("invalid").Inc()
		return fmt.Errorf("alice establish: %w", err)
	}
	metrics.AnnouncementsInitiated.WithLabelValues("outgoing").Inc()
	metrics.AnnouncementDuration.WithLabelValues("precursor").Observe(time.Since(start).Seconds())

	bobAnnouncement, err := bob.EstablishOutgoingSession(alicePub, bobPub, bobSec, nil)
	if err != nil {
		return fmt.Errorf("bob establish: %w", err)
	}
	metrics.AnnouncementsInitiated.WithLabelValues("outgoing").Inc()

	if _, err := bob.FeedIncomingAnnouncement(aliceAnnouncement, bobPub, bobSec); err != nil {
		metrics.AnnouncementsRejected.WithLabelValues("invalid").Inc()
		return fmt.Errorf("bob feed announcement: %w", err)
	}
	metrics.AnnouncementsCompleted.WithLabelValues("success").Inc()

	if _, err := alice.FeedIncomingAnnouncement(bobAnnouncement, alicePub, aliceSec); err != nil {
		metrics.AnnouncementsRejected.WithLabelValues("invalid").Inc()
		return fmt.Errorf("alice feed announcement: %w", err)
	}
	metrics.AnnouncementsCompleted.WithLabelValues("success").Inc()
	metrics.SessionsCreated.WithLabelValues("success").Inc()
	metrics.SessionsActive.Add(2)

	fmt.Println("  exchanging messages...")
	for i := 0; i < 3; i++ {
		payload := []byte(fmt.Sprintf("hello from alice #%d", i))
		sendStart := time.Now()
		wire, err := alice.SendMessage(bobPub.UserID(), payload)
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		metrics.SessionDuration.WithLabelValues("send").Observe(time.Since(sendStart).Seconds())
		metrics.SessionMessageSize.WithLabelValues("outbound").Observe(float64(len(wire)))

		seekers := bob.GetMessageBoardReadKeys()
		var delivered bool
		for _, seeker := range seekers {
			if result, err := bob.FeedIncomingMessageBoardRead(seeker, wire, bobSec); err == nil {
				metrics.ParentResolutions.WithLabelValues("resolved").Inc()
				metrics.SessionMessageSize.WithLabelValues("inbound").Observe(float64(len(result.Payload)))
				delivered = true
				break
			}
		}
		if !delivered {
			metrics.ParentResolutions.WithLabelValues("unresolved").Inc()
			metrics.UnresolvedParents.Inc()
		}
	}

	metrics.CryptoOperations.WithLabelValues("kem_encapsulate", "mlkem768").Add(2)
	metrics.CryptoOperations.WithLabelValues("kem_decapsulate", "mlkem768").Add(2)
	metrics.CryptoOperations.WithLabelValues("aead_seal", "xchacha20poly1305-siv").Add(3)
	metrics.CryptoOperations.WithLabelValues("aead_open", "xchacha20poly1305-siv").Add(3)

	fmt.Println("  sample metrics generated")
	fmt.Println()
	fmt.Println("current metrics summary:")
	fmt.Println("   - announcements initiated: 2")
	fmt.Println("   - announcements completed: 2")
	fmt.Println("   - sessions created: 1 (bidirectional)")
	fmt.Println("   - messages exchanged: 3")
	return nil
}
