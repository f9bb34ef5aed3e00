package spatial

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/uber/h3-go/v4"
)

// Resolutions used by the system. Fine cells (~0.1 km², edge ~174 m) carry
// street-level coverage; coarse cells (~5 km²) carry regional baselines and
// broad alert zones.
const (
	ResolutionFine   = 9
	ResolutionCoarse = 7

	maxResolution = 15
)

var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrInvalidResolution = errors.New("invalid resolution")
	ErrInvalidCell       = errors.New("invalid cell id")
)

// CellOf returns the hex cell token containing (lat, lng) at the given resolution.
// The token encodes its resolution, so tokens of different resolutions never collide.
func CellOf(lat, lng float64, resolution int) (string, error) {
	if !ValidLatLng(lat, lng) {
		return "", fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinate, lat, lng)
	}
	if resolution < 0 || resolution > maxResolution {
		return "", fmt.Errorf("%w: %d", ErrInvalidResolution, resolution)
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lng), resolution)
	if err != nil {
		return "", fmt.Errorf("failed to index point: %w", err)
	}
	return cell.String(), nil
}

// ParseCell decodes a cell token and checks it is a valid cell index
func ParseCell(cellID string) (h3.Cell, error) {
	v, err := strconv.ParseUint(cellID, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCell, cellID)
	}
	cell := h3.Cell(v)
	if !cell.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCell, cellID)
	}
	return cell, nil
}

// ResolutionOf returns the resolution encoded in a cell token
func ResolutionOf(cellID string) (int, error) {
	cell, err := ParseCell(cellID)
	if err != nil {
		return 0, err
	}
	return cell.Resolution(), nil
}

// CenterOf returns the center point of a cell
func CenterOf(cellID string) (Point, error) {
	cell, err := ParseCell(cellID)
	if err != nil {
		return Point{}, err
	}
	ll, err := cell.LatLng()
	if err != nil {
		return Point{}, fmt.Errorf("failed to get cell center: %w", err)
	}
	return Point{Lat: ll.Lat, Lng: ll.Lng}, nil
}

// BoundaryOf returns the cell outline as a closed ring (first point repeated at the end)
func BoundaryOf(cellID string) ([]Point, error) {
	cell, err := ParseCell(cellID)
	if err != nil {
		return nil, err
	}
	boundary, err := cell.Boundary()
	if err != nil {
		return nil, fmt.Errorf("failed to get cell boundary: %w", err)
	}
	if len(boundary) == 0 {
		return nil, fmt.Errorf("%w: empty boundary for %s", ErrInvalidCell, cellID)
	}

	ring := make([]Point, 0, len(boundary)+1)
	for _, ll := range boundary {
		ring = append(ring, Point{Lat: ll.Lat, Lng: ll.Lng})
	}
	ring = append(ring, ring[0])
	return ring, nil
}

// NeighborsWithin returns every cell within k rings of cellID, the center included,
// sorted by token. k=5 at the fine resolution covers roughly a 2.5 km radius.
func NeighborsWithin(cellID string, k int) ([]string, error) {
	if k < 0 {
		return nil, fmt.Errorf("k must be non-negative, got %d", k)
	}
	cell, err := ParseCell(cellID)
	if err != nil {
		return nil, err
	}
	disk, err := cell.GridDisk(k)
	if err != nil {
		return nil, fmt.Errorf("failed to compute grid disk: %w", err)
	}

	ids := make([]string, 0, len(disk))
	for _, c := range disk {
		if c == 0 {
			continue
		}
		ids = append(ids, c.String())
	}
	sort.Strings(ids)
	return ids, nil
}
