// Package docker implements the container runtime boundary on top of
// dockertest: start a postgres server container from an image identifier
// with an ephemeral host-assigned port, and stop and remove it by ID. No
// other container API surface is used.
package docker

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/ory/dockertest/v3"
	dc "github.com/ory/dockertest/v3/docker"
)

// postgresPort is the port postgres listens on inside the container. The
// runtime maps it to an ephemeral host port so concurrent test runs never
// collide.
const postgresPort = "5432/tcp"

// Container identifies a running server container and where to reach it
// from the host.
type Container struct {
	ID   string
	Host string
	Port int
}

// Engine wraps a dockertest pool. One engine can run any number of
// containers; each Start gets its own container and host port.
type Engine struct {
	pool   *dockertest.Pool
	logger *slog.Logger

	mu        sync.Mutex
	resources map[string]*dockertest.Resource
}

// NewEngine connects to the local docker daemon using the default endpoint
// resolution (DOCKER_HOST, then the platform socket). An unreachable daemon
// is reported here rather than at Start time.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		return nil, fmt.Errorf("failed to construct docker pool: %w", err)
	}
	if err := pool.Client.Ping(); err != nil {
		return nil, fmt.Errorf("docker daemon is not reachable: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		pool:      pool,
		logger:    logger,
		resources: make(map[string]*dockertest.Resource),
	}, nil
}

// Start launches a postgres container for the given image identifier and
// resolves the ephemeral host port mapped to the postgres port. The
// container trusts local connections (POSTGRES_HOST_AUTH_METHOD=trust), so
// the bootstrap superuser needs no password. The dockertest API offers no
// context plumbing, so Start runs to completion once called.
func (e *Engine) Start(image string) (Container, error) {
	repository, tag := ParseImage(image)

	resource, err := e.pool.RunWithOptions(&dockertest.RunOptions{
		Repository: repository,
		Tag:        tag,
		Env: []string{
			"POSTGRES_HOST_AUTH_METHOD=trust",
		},
	}, func(hc *dc.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = dc.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return Container{}, fmt.Errorf("failed to run container for %s:%s: %w", repository, tag, err)
	}

	id := resource.Container.ID

	hostPort := resource.GetPort(postgresPort)
	port, convErr := strconv.Atoi(hostPort)
	if convErr != nil || port == 0 {
		// The container came up without a usable port mapping; remove it
		// rather than leak it.
		if purgeErr := e.pool.Purge(resource); purgeErr != nil {
			e.logger.Warn("failed to remove container after port resolution failure",
				slog.String("container_id", id),
				slog.String("error", purgeErr.Error()))
		}
		return Container{}, fmt.Errorf("failed to resolve host port for %s (got %q)", postgresPort, hostPort)
	}

	e.mu.Lock()
	e.resources[id] = resource
	e.mu.Unlock()

	e.logger.Debug("container running",
		slog.String("container_id", id),
		slog.String("repository", repository),
		slog.String("tag", tag),
		slog.Int("host_port", port))

	return Container{ID: id, Host: "localhost", Port: port}, nil
}

// StopAndRemove stops the container and removes it together with its
// volumes. It is safe to call exactly once per started container.
func (e *Engine) StopAndRemove(id string) error {
	e.mu.Lock()
	resource, ok := e.resources[id]
	delete(e.resources, id)
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown container %q", id)
	}

	if err := e.pool.Purge(resource); err != nil {
		return fmt.Errorf("failed to stop and remove container %s: %w", id, err)
	}
	return nil
}

// ParseImage splits an image identifier into repository and tag. A bare
// version such as "16-alpine" or "11" is treated as a tag of the official
// postgres image; a bare repository defaults to the latest tag.
func ParseImage(image string) (repository, tag string) {
	lastColon := strings.LastIndex(image, ":")
	lastSlash := strings.LastIndex(image, "/")

	if lastColon > lastSlash {
		repository, tag = image[:lastColon], image[lastColon+1:]
	} else {
		repository, tag = image, ""
	}

	if repository != "" && tag == "" && !strings.Contains(repository, "/") && looksLikeTag(repository) {
		return "postgres", repository
	}
	if tag == "" {
		tag = "latest"
	}
	return repository, tag
}

// looksLikeTag reports whether s reads as a version tag ("11", "16-alpine")
// rather than a repository name.
func looksLikeTag(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}
