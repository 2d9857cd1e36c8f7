package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"pts.app/internal/directory/remote"
	"pts.app/internal/session"
	"pts.app/internal/storage"
)

func main() {
	baseURL := os.Getenv("PTS_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	email := os.Getenv("PTS_SMOKE_EMAIL")
	password := os.Getenv("PTS_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("PTS_SMOKE_EMAIL and PTS_SMOKE_PASSWORD are required")
	}

	stateDir, err := os.MkdirTemp("", "pts-smoke-")
	if err != nil {
		log.Fatalf("state dir: %v", err)
	}
	defer os.RemoveAll(stateDir)

	durable, err := storage.OpenFile(filepath.Join(stateDir, "session.json"))
	if err != nil {
		log.Fatalf("open durable store: %v", err)
	}

	client, err := remote.New(baseURL, remote.WithTokenStore(durable))
	if err != nil {
		log.Fatalf("api client: %v", err)
	}

	authority, err := session.New(client, client, durable, storage.NewMemory())
	if err != nil {
		log.Fatalf("session authority: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := authority.SignIn(ctx, email, password); err != nil {
		log.Fatalf("sign in: %v", err)
	}
	person := authority.Person()
	if person == nil {
		log.Fatal("no person resolved after sign-in")
	}

	assigns := authority.Assignments()
	fmt.Printf("signed in as %s %s (%d active assignments)\n",
		person.FirstName, person.LastName, len(assigns))

	if project := authority.Project(); project != nil {
		fmt.Printf("selected project: %s (%s), role=%s, area=%s\n",
			project.Name, project.Code, authority.Role(), authority.Area())
	}

	// Switch to every assigned project in turn; unknown ids must be ignored.
	for _, a := range assigns {
		authority.SwitchProject(a.ProjectID)
		if p := authority.Project(); p == nil || p.ID != a.ProjectID {
			log.Fatalf("switch to %s did not take effect", a.ProjectID)
		}
	}
	authority.SwitchProject("no-such-project")
	if len(assigns) > 0 && authority.Project() == nil {
		log.Fatal("unknown project id cleared the selection")
	}

	if err := authority.SignOut(ctx); err != nil {
		log.Fatalf("sign out: %v", err)
	}
	if authority.Person() != nil || authority.Role() != "" {
		log.Fatal("session state survived sign-out")
	}

	fmt.Println("session smoke test passed")
}
