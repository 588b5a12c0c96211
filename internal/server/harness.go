package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	gogithub "github.com/google/go-github/v55/github"
	"github.com/sheriff-project/sheriff/internal/config"
	"github.com/sheriff-project/sheriff/internal/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const checkName = "Sheriff Dry Run"

const (
	mergeShaAttempts = 10
	mergeShaInterval = 5 * time.Second
)

type dryRunTask struct {
	org      string
	repo     string
	headSha  string
	mergeSha string
	checkId  int64
}

/*
 * DryRunHarness turns a pull request against the permissions repo into
 * a check-run carrying the colored output of a dry reconcile. Tasks
 * run on a single-worker FIFO so two dry-runs never interleave; a
 * crashed task records a failure check and the worker moves on.
 */
type DryRunHarness struct {
	provider github.ClientProvider
	queue    chan dryRunTask
	wg       sync.WaitGroup

	// overridable for tests
	pollInterval time.Duration
	command      []string
	gistClient   *gogithub.Client
}

func NewDryRunHarness(provider github.ClientProvider) *DryRunHarness {
	binary, err := os.Executable()
	if err != nil {
		binary = "sheriff"
	}
	h := &DryRunHarness{
		provider:     provider,
		queue:        make(chan dryRunTask, 16),
		pollInterval: mergeShaInterval,
		command:      []string{binary, "reconcile", "--color", "--noprogressbar"},
	}
	go h.worker()
	return h
}

// Drain waits for every accepted delivery to finish.
func (h *DryRunHarness) Drain() {
	h.wg.Wait()
}

type pullRequestEvent struct {
	Action     string `json:"action"`
	Number     int    `json:"number"`
	Repository struct {
		Name  string `json:"name"`
		Owner struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	PullRequest struct {
		Head struct {
			Sha string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
}

// HandlePullRequest accepts a pull_request delivery. Only opened and
// synchronize actions against the permissions repo are processed.
func (h *DryRunHarness) HandlePullRequest(ctx context.Context, payload []byte) {
	event := pullRequestEvent{}
	if err := json.Unmarshal(payload, &event); err != nil {
		logrus.Errorf("cannot decode pull_request payload: %v", err)
		return
	}
	if event.Action != "opened" && event.Action != "synchronize" {
		return
	}
	if event.Repository.Owner.Login != config.Config.PermissionsFileOrg ||
		event.Repository.Name != config.Config.PermissionsFileRepo {
		return
	}

	h.wg.Add(1)
	go h.prepare(ctx, event.Repository.Owner.Login, event.Repository.Name, event.Number, event.PullRequest.Head.Sha)
}

// prepare polls for the merge sha, posts the in_progress check and
// enqueues the dry-run. The worker releases the WaitGroup once the
// task has run.
func (h *DryRunHarness) prepare(ctx context.Context, org, repo string, number int, headSha string) {
	client, err := h.provider.ClientFor(org, false)
	if err != nil {
		h.wg.Done()
		logrus.Errorf("cannot get client for %s: %v", org, err)
		return
	}
	rest := client.Rest()

	mergeSha := ""
	for attempt := 0; attempt < mergeShaAttempts; attempt++ {
		pr, _, err := rest.PullRequests.Get(ctx, org, repo, number)
		if err == nil && pr.GetMergeCommitSHA() != "" {
			mergeSha = pr.GetMergeCommitSHA()
			break
		}
		time.Sleep(h.pollInterval)
	}

	if mergeSha == "" {
		h.postCompletedCheck(ctx, rest, org, repo, headSha, 0, "failure", "No merge sha available", "")
		h.wg.Done()
		return
	}

	check, _, err := rest.Checks.CreateCheckRun(ctx, org, repo, gogithub.CreateCheckRunOptions{
		Name:    checkName,
		HeadSHA: headSha,
		Status:  gogithub.String("in_progress"),
	})
	if err != nil {
		h.wg.Done()
		logrus.Errorf("cannot create check run on %s/%s@%s: %v", org, repo, headSha, err)
		return
	}

	h.queue <- dryRunTask{
		org:      org,
		repo:     repo,
		headSha:  headSha,
		mergeSha: mergeSha,
		checkId:  check.GetID(),
	}
}

func (h *DryRunHarness) worker() {
	for task := range h.queue {
		h.run(context.Background(), task)
		h.wg.Done()
	}
}

func (h *DryRunHarness) run(ctx context.Context, task dryRunTask) {
	client, err := h.provider.ClientFor(task.org, false)
	if err != nil {
		logrus.Errorf("cannot get client for %s: %v", task.org, err)
		return
	}
	rest := client.Rest()

	output, exitedCleanly, err := h.dryReconcile(ctx, client, task)
	if err != nil {
		// the harness itself failed, not the child
		logrus.Errorf("dry-run harness failed on %s/%s@%s: %v", task.org, task.repo, task.headSha, err)
		h.postCompletedCheck(ctx, rest, task.org, task.repo, task.headSha, task.checkId, "action_required", "Something went wrong", "")
		return
	}

	gistURL, err := h.uploadSVG(ctx, AnsiToSVG(output))
	if err != nil {
		logrus.Errorf("cannot upload dry-run output: %v", err)
		h.postCompletedCheck(ctx, rest, task.org, task.repo, task.headSha, task.checkId, "action_required", "Something went wrong", "")
		return
	}

	conclusion := "success"
	if !exitedCleanly {
		conclusion = "failure"
	}
	h.postCompletedCheck(ctx, rest, task.org, task.repo, task.headSha, task.checkId, conclusion,
		"Dry-run of the proposed permissions file",
		fmt.Sprintf("<img src=%q width=\"800\" />", gistURL))
}

// dryReconcile fetches the proposed permissions file at the merge sha
// and replays the reconciler on it in a subprocess, dry-run on, color
// on. Returns the combined output and whether the child exited 0.
func (h *DryRunHarness) dryReconcile(ctx context.Context, client github.Client, task dryRunTask) (string, bool, error) {
	content, _, _, err := client.Rest().Repositories.GetContents(ctx, task.org, task.repo,
		config.Config.PermissionsFilePath,
		&gogithub.RepositoryContentGetOptions{Ref: task.mergeSha})
	if err != nil {
		return "", false, fmt.Errorf("cannot fetch permissions file at %s: %w", task.mergeSha, err)
	}
	decoded, err := content.GetContent()
	if err != nil {
		return "", false, err
	}

	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("sheriff-%s-%s.yaml", task.mergeSha, task.headSha))
	if err := os.WriteFile(tempPath, []byte(decoded), 0644); err != nil {
		return "", false, err
	}
	defer os.Remove(tempPath)

	cmd := exec.Command(h.command[0], h.command[1:]...)
	cmd.Env = append(os.Environ(), "PERMISSIONS_FILE_LOCAL_PATH="+tempPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return string(output), false, nil
		}
		return "", false, err
	}
	return string(output), true, nil
}

func (h *DryRunHarness) uploadSVG(ctx context.Context, svg string) (string, error) {
	client := h.gistClient
	if client == nil {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Config.GistToken})
		client = gogithub.NewClient(oauth2.NewClient(ctx, ts))
	}

	filename := gogithub.GistFilename("dryrun.svg")
	gist, _, err := client.Gists.Create(ctx, &gogithub.Gist{
		Public:      gogithub.Bool(false),
		Description: gogithub.String("sheriff dry-run output"),
		Files: map[gogithub.GistFilename]gogithub.GistFile{
			filename: {Content: gogithub.String(svg)},
		},
	})
	if err != nil {
		return "", err
	}
	file, ok := gist.Files[filename]
	if !ok || file.RawURL == nil {
		return "", fmt.Errorf("gist upload returned no raw url")
	}
	return file.GetRawURL(), nil
}

// postCompletedCheck finishes (or, when checkId is 0, creates already
// completed) the dry-run check.
func (h *DryRunHarness) postCompletedCheck(ctx context.Context, rest *gogithub.Client, org, repo, headSha string, checkId int64, conclusion, summary, text string) {
	output := &gogithub.CheckRunOutput{
		Title:   gogithub.String(checkName),
		Summary: gogithub.String(summary),
	}
	if text != "" {
		output.Text = gogithub.String(text)
	}

	var err error
	if checkId == 0 {
		_, _, err = rest.Checks.CreateCheckRun(ctx, org, repo, gogithub.CreateCheckRunOptions{
			Name:       checkName,
			HeadSHA:    headSha,
			Status:     gogithub.String("completed"),
			Conclusion: gogithub.String(conclusion),
			Output:     output,
		})
	} else {
		_, _, err = rest.Checks.UpdateCheckRun(ctx, org, repo, checkId, gogithub.UpdateCheckRunOptions{
			Name:       checkName,
			Status:     gogithub.String("completed"),
			Conclusion: gogithub.String(conclusion),
			Output:     output,
		})
	}
	if err != nil {
		logrus.Errorf("cannot post %s check on %s/%s@%s: %v", conclusion, org, repo, headSha, err)
	}
}
