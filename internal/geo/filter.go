package geo

import (
	"math"
	"sort"
)

const earthRadiusKm = 6371.0

// Point là một tọa độ WGS84.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid kiểm tra tọa độ có nằm trong phạm vi hợp lệ không.
// NaN/Inf hoặc ngoài phạm vi đều bị coi là không hợp lệ.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
		return false
	}
	return math.Abs(p.Lat) <= 90 && math.Abs(p.Lng) <= 180
}

// DistanceKm tính khoảng cách đường chim bay giữa hai điểm (công thức haversine).
func DistanceKm(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// RoundTenth làm tròn khoảng cách về 1 chữ số thập phân để hiển thị.
func RoundTenth(km float64) float64 {
	return math.Round(km*10) / 10
}

// Candidate là một mission đang chờ, chỉ gồm ID và điểm lấy hàng.
type Candidate struct {
	ID    string
	Point Point
}

// Match là một candidate nằm trong bán kính, kèm khoảng cách đã làm tròn.
type Match struct {
	ID         string
	DistanceKm float64
}

// FindNearby lọc các candidate trong bán kính radiusKm quanh origin,
// sắp xếp theo khoảng cách tăng dần. Candidate có tọa độ không hợp lệ
// bị bỏ qua chứ không gây lỗi.
func FindNearby(origin Point, radiusKm float64, candidates []Candidate) []Match {
	matches := []Match{}
	if !origin.Valid() {
		return matches
	}

	for _, cand := range candidates {
		if !cand.Point.Valid() {
			continue
		}
		dist := DistanceKm(origin, cand.Point)
		if dist > radiusKm {
			continue
		}
		matches = append(matches, Match{ID: cand.ID, DistanceKm: RoundTenth(dist)})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceKm < matches[j].DistanceKm
	})

	return matches
}
