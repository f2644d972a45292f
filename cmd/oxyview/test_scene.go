package main

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
)

// testScene builds a ground plane with a ring of boxes of increasing height, so the shadows of
// every cascade have something to fall on.
func testScene() scene.Node {
	ground := scene.NewNode("Ground", scene.WithGeometry(scene.NewBox("Ground",
		common.BoundingBoxFromPoints(mgl32.Vec3{-20, -20, -0.5}, mgl32.Vec3{20, 20, 0}),
		mgl32.Vec4{0.6, 0.6, 0.55, 1},
	)))

	root := scene.NewNode("Test Scene", scene.WithChildren(ground))
	const count = 8
	for i := range count {
		angle := float64(i) * 2 * math.Pi / count
		c := mgl32.Vec3{8 * float32(math.Cos(angle)), 8 * float32(math.Sin(angle)), 0}
		height := 1 + float32(i)
		box := scene.NewBox(fmt.Sprintf("Box %d", i),
			common.BoundingBoxFromPoints(c.Sub(mgl32.Vec3{1, 1, 0}), c.Add(mgl32.Vec3{1, 1, height})),
			mgl32.Vec4{0.2 + 0.1*float32(i), 0.4, 0.8 - 0.08*float32(i), 1},
		)
		root.AddChild(scene.NewNode(box.Name, scene.WithGeometry(box)))
	}
	return root
}
