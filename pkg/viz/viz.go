// Package viz renders the checkpoint lineage: a straight-line graph of
// checkpoint number -> shape count -> timestamp, one node per saved
// checkpoint.
package viz

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/cwse/internal/shape"
)

// Lineage describes one checkpoint node for rendering, already resolved
// from a server.CheckpointStore by the caller.
type Lineage struct {
	Number    uint64
	Shapes    []shape.BoardShape
	CreatedAt time.Time
}

// RenderLineageToSvg draws nodes[0] -> nodes[1] -> ... -> nodes[n-1] as a
// linear chain, one node per checkpoint, labelled with its number, shape
// count, and save time.
func RenderLineageToSvg(nodes []Lineage, outputPath string) error {
	g := graphviz.New()

	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}

	var prev *cgraph.Node
	var edgeCounter uint64
	for _, node := range nodes {
		n, err := graph.CreateNode(strconv.FormatUint(node.Number, 10))
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(fmt.Sprintf("checkpoint %d\n%d shapes\n%s", node.Number, len(node.Shapes), node.CreatedAt.Format(time.RFC3339)))

		if prev != nil {
			edgeCounter++
			if _, err := graph.CreateEdge(strconv.FormatUint(edgeCounter, 10), prev, n); err != nil {
				return fmt.Errorf("failed to create edge: %w", err)
			}
		}
		prev = n
	}

	var buff bytes.Buffer
	if err := g.Render(graph, graphviz.SVG, &buff); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	if err := os.WriteFile(outputPath, buff.Bytes(), os.ModePerm); err != nil {
		return fmt.Errorf("failed to write")
	}
	return nil
}

// RenderLineageToTemp renders nodes to a randomly named file under the
// system temp directory and returns its path.
func RenderLineageToTemp(nodes []Lineage) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("%d%d.svg", time.Now().UnixNano(), rand.Int()))
	if err := RenderLineageToSvg(nodes, tf); err != nil {
		return "", err
	}
	return tf, nil
}
