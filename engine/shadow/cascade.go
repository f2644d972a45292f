package shadow

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/go-gl/mathgl/mgl32"
)

// SplitScheme selects how the depth range of the reference bound is divided between cascades.
type SplitScheme int

const (
	// SplitPractical blends geometric and uniform splits by the split lambda.
	SplitPractical SplitScheme = iota

	// SplitGeometric grows each cascade's far plane by a constant ratio.
	SplitGeometric

	// SplitUniform gives every cascade the same depth range.
	SplitUniform
)

// String returns the configuration spelling of the scheme.
func (s SplitScheme) String() string {
	switch s {
	case SplitGeometric:
		return "geometric"
	case SplitUniform:
		return "uniform"
	default:
		return "practical"
	}
}

// ParseSplitScheme parses the configuration spelling of a split scheme.
//
// Parameters:
//   - s: "practical", "geometric" or "uniform"
//
// Returns:
//   - SplitScheme: the scheme
//   - bool: false if s is not a known scheme
func ParseSplitScheme(s string) (SplitScheme, bool) {
	switch s {
	case "", "practical":
		return SplitPractical, true
	case "geometric":
		return SplitGeometric, true
	case "uniform":
		return SplitUniform, true
	default:
		return SplitPractical, false
	}
}

// viewFrame measures depth along a direction from an eye point.
type viewFrame struct {
	eye     mgl32.Vec3
	forward mgl32.Vec3
}

func (v viewFrame) depth(p mgl32.Vec3) float32 {
	return p.Sub(v.eye).Dot(v.forward)
}

// cascade is the fitted light-space volume of one slab.
type cascade struct {
	view       mgl32.Mat4
	projection mgl32.Mat4
	splitNear  float32
	splitFar   float32
	width      float32
}

// splitDistances returns n+1 strictly increasing depths from near to far.
func splitDistances(near, far float32, n int, scheme SplitScheme, lambda float32) []float32 {
	out := make([]float32, n+1)
	out[0], out[n] = near, far
	step := max((far-near)*1e-4, common.Ulp(max(abs32(near), abs32(far))))

	logNear := near
	if logNear <= 0 {
		logNear = max(far*1e-3, 1e-3)
	}
	for i := 1; i < n; i++ {
		t := float32(i) / float32(n)
		uniform := near + (far-near)*t
		geometric := uniform
		if far > logNear {
			geometric = logNear * float32(math.Pow(float64(far/logNear), float64(t)))
		}

		var d float32
		switch scheme {
		case SplitUniform:
			d = uniform
		case SplitGeometric:
			d = geometric
		default:
			d = lambda*geometric + (1-lambda)*uniform
		}
		out[i] = common.Clamp(d, out[i-1]+step, far-float32(n-i)*step)
	}
	return out
}

func abs32(v float32) float32 {
	return float32(math.Abs(float64(v)))
}

// boxEdges lists corner index pairs of BoundingBox.Corners that share an edge.
var boxEdges = func() [12][2]int {
	var out [12][2]int
	k := 0
	for i := range 8 {
		for _, bit := range []int{1, 2, 4} {
			if i&bit == 0 {
				out[k] = [2]int{i, i | bit}
				k++
			}
		}
	}
	return out
}()

// slabPoints returns the vertices of the intersection of a box with the slab a <= depth <= b.
func slabPoints(corners [8]mgl32.Vec3, frame viewFrame, a, b float32) []mgl32.Vec3 {
	var depths [8]float32
	for i, c := range corners {
		depths[i] = frame.depth(c)
	}
	eps := (b - a) * 1e-5

	var out []mgl32.Vec3
	for i, c := range corners {
		if depths[i] >= a-eps && depths[i] <= b+eps {
			out = append(out, c)
		}
	}
	for _, e := range boxEdges {
		p, q := corners[e[0]], corners[e[1]]
		dp, dq := depths[e[0]], depths[e[1]]
		if dp == dq {
			continue
		}
		for _, plane := range [2]float32{a, b} {
			t := (plane - dp) / (dq - dp)
			if t > 0 && t < 1 {
				out = append(out, p.Add(q.Sub(p).Mul(t)))
			}
		}
	}
	return out
}

// fitCascades builds one orthographic light camera per slab of the bound. The depth range of
// every cascade covers the whole bound so casters outside a slab still cast into it. The fit runs
// relative to the bound center so bounds far from the origin keep their precision.
//
// Parameters:
//   - bound: the reference bound, already clamped to a positive extent
//   - lightDir: the normalized direction the light travels
//   - frame: the frame slab depths are measured in
//   - splits: the n+1 slab boundaries
//   - minExtent: the smallest allowed light-space extent on any axis
//
// Returns:
//   - []cascade: the fitted cascades
//   - error: non-nil if the light view is not finite
func fitCascades(bound common.BoundingBox, lightDir mgl32.Vec3, frame viewFrame, splits []float32, minExtent float32) ([]cascade, error) {
	corners := bound.Corners()
	center := bound.Center()
	slack := common.MinResolvable(common.MaxAbs(center))
	minExtent = max(minExtent, slack)

	var local [8]mgl32.Vec3
	for i, c := range corners {
		local[i] = c.Sub(center)
	}
	radius := max(bound.Radius(), minExtent)
	lightView := mgl32.LookAtV(lightDir.Mul(-radius*2), mgl32.Vec3{}, common.StableUp(lightDir))
	if !common.IsFinite(lightView) {
		return nil, fmt.Errorf("light view for direction %v is not finite", lightDir)
	}
	view := lightView.Mul4(mgl32.Translate3D(-center.X(), -center.Y(), -center.Z()))

	zMin, zMax := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, c := range local {
		z := common.TransformPoint(lightView, c).Z()
		zMin, zMax = min(zMin, z), max(zMax, z)
	}
	// light view looks down -z
	near, far := -zMax, -zMin
	if far-near < minExtent {
		mid := (near + far) * 0.5
		near, far = mid-minExtent*0.5, mid+minExtent*0.5
	}
	depthPad := max((far-near)*0.01, slack)
	near, far = near-depthPad, far+depthPad

	out := make([]cascade, 0, len(splits)-1)
	for i := 1; i < len(splits); i++ {
		points := slabPoints(corners, frame, splits[i-1], splits[i])
		if len(points) == 0 {
			points = corners[:]
		}

		lo := mgl32.Vec2{math.MaxFloat32, math.MaxFloat32}
		hi := mgl32.Vec2{-math.MaxFloat32, -math.MaxFloat32}
		for _, p := range points {
			lp := common.TransformPoint(lightView, p.Sub(center))
			lo = mgl32.Vec2{min(lo.X(), lp.X()), min(lo.Y(), lp.Y())}
			hi = mgl32.Vec2{max(hi.X(), lp.X()), max(hi.Y(), lp.Y())}
		}
		for axis := range 2 {
			if hi[axis]-lo[axis] < minExtent {
				mid := (lo[axis] + hi[axis]) * 0.5
				lo[axis], hi[axis] = mid-minExtent*0.5, mid+minExtent*0.5
			}
			// texel-scale slack so corners on the edge stay inside after rasterization
			pad := max((hi[axis]-lo[axis])*1e-3, slack)
			lo[axis], hi[axis] = lo[axis]-pad, hi[axis]+pad
		}

		c := cascade{
			view:       view,
			projection: common.OrthoZO(lo.X(), hi.X(), lo.Y(), hi.Y(), near, far),
			splitNear:  splits[i-1],
			splitFar:   splits[i],
			width:      max(hi.X()-lo.X(), hi.Y()-lo.Y()),
		}
		if !common.IsFinite(c.view) || !common.IsFinite(c.projection) {
			return nil, fmt.Errorf("cascade %d is not finite", i-1)
		}
		out = append(out, c)
	}
	return out, nil
}

// frustumLines returns the twelve edges of the volume described by viewProj as line segments.
func frustumLines(viewProj mgl32.Mat4) []mgl32.Vec3 {
	corners, ok := common.FrustumCorners(viewProj)
	if !ok {
		return nil
	}
	out := make([]mgl32.Vec3, 0, 24)
	for _, e := range boxEdges {
		out = append(out, corners[e[0]], corners[e[1]])
	}
	return out
}
