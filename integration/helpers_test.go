//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/meigma/pixgrid/internal/testutil"
)

// catalogSize is the number of images the container serves.
const catalogSize = 24

var (
	serverOnce sync.Once
	serverURL  string
	serverErr  error
)

// getServer returns the base URL of the shared image server, starting the
// container if needed.
func getServer(tb testing.TB) string {
	tb.Helper()

	if os.Getenv("SKIP_DOCKER_TESTS") == "1" {
		tb.Skip("SKIP_DOCKER_TESTS is set")
	}

	serverOnce.Do(func() {
		serverURL, serverErr = startImageContainer(context.Background())
	})

	if serverErr != nil {
		tb.Fatalf("start image container: %v", serverErr)
	}
	return serverURL
}

// startImageContainer starts nginx serving /pics/{1..catalogSize}.jpg.
func startImageContainer(ctx context.Context) (string, error) {
	dir, err := os.MkdirTemp("", "pixgrid-images-")
	if err != nil {
		return "", err
	}
	// Files are copied into the container before GenericContainer returns.
	defer os.RemoveAll(dir)

	files := make([]testcontainers.ContainerFile, 0, catalogSize)
	for index := 1; index <= catalogSize; index++ {
		name := strconv.Itoa(index) + ".jpg"
		host := filepath.Join(dir, name)
		if err := os.WriteFile(host, testutil.ImagePNG(index), 0o644); err != nil {
			return "", err
		}
		files = append(files, testcontainers.ContainerFile{
			HostFilePath:      host,
			ContainerFilePath: "/usr/share/nginx/html/pics/" + name,
			FileMode:          0o644,
		})
	}

	req := testcontainers.ContainerRequest{
		Image:        "nginx:1.27-alpine",
		ExposedPorts: []string{"80/tcp"},
		Files:        files,
		WaitingFor:   wait.ForHTTP("/pics/1.jpg").WithPort("80/tcp").WithStatusCodeMatcher(isOKStatus),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", fmt.Errorf("start nginx container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve nginx host: %w", err)
	}
	port, err := container.MappedPort(ctx, "80/tcp")
	if err != nil {
		return "", fmt.Errorf("resolve nginx port: %w", err)
	}
	return fmt.Sprintf("http://%s:%s", host, port.Port()), nil
}

func isOKStatus(status int) bool {
	return status >= 200 && status < 300
}
