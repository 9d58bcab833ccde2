package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/talentshire/assessment-core/internal/config"
	"github.com/talentshire/assessment-core/internal/service"
)

func main() {
	var (
		tokenType string
		subject   string
		ttl       time.Duration
	)
	flag.StringVar(&tokenType, "type", "admin", "Token type: admin, candidate or service")
	flag.StringVar(&subject, "subject", "", "Subject uuid (candidate id for candidate tokens; random when empty for admin/service)")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime, e.g. 2h (defaults to JWT_EXPIRY_HOURS)")
	flag.Parse()

	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()
	authService := service.NewAuthService(cfg)

	typ := service.TokenType(strings.ToLower(strings.TrimSpace(tokenType)))
	if !typ.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown token type %q\n", tokenType)
		os.Exit(2)
	}

	// ─── Resolve Subject ───────────────────────────────────────────────
	if subject == "" && typ == service.TokenTypeCandidate {
		fmt.Print("Enter Candidate ID: ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		subject = strings.TrimSpace(line)
	}

	subjectID := uuid.New()
	if subject != "" {
		id, err := uuid.Parse(subject)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: subject must be a uuid: %v\n", err)
			os.Exit(2)
		}
		subjectID = id
	}

	token, err := authService.IssueToken(typ, subjectID, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Issued %s token for %s\n", typ, subjectID)
	fmt.Println(token)
}
