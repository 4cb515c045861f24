package render

import (
	"image/color"

	"github.com/pkg/errors"
)

// Edge is a link between two joints of a skeleton, by joint index
type Edge struct {
	From int
	To   int
}

// Skeleton describes the joints a pose model emits and how to draw them
type Skeleton struct {
	// Name of the skeleton, eg: coco17
	Name string
	// Joints are the keypoint names in model output order
	Joints []string
	// Edges are the links drawn between joints
	Edges []Edge
	// PointColors has one color per joint
	PointColors []color.RGBA
	// LinkColors has one color per edge
	LinkColors []color.RGBA
}

// Len returns the number of joints
func (s Skeleton) Len() int {
	return len(s.Joints)
}

// JointName returns the name of the joint at index i, or an empty string if
// out of range
func (s Skeleton) JointName(i int) string {
	if i < 0 || i >= len(s.Joints) {
		return ""
	}
	return s.Joints[i]
}

// Validate checks edges reference existing joints and there is a color for
// every joint and edge
func (s Skeleton) Validate() error {

	if len(s.Joints) == 0 {
		return errors.Errorf("skeleton %q has no joints", s.Name)
	}

	for i, e := range s.Edges {
		if e.From < 0 || e.From >= len(s.Joints) || e.To < 0 || e.To >= len(s.Joints) {
			return errors.Errorf("skeleton %q edge %d (%d,%d) references a joint out of range [0,%d)",
				s.Name, i, e.From, e.To, len(s.Joints))
		}
	}

	if len(s.PointColors) != len(s.Joints) {
		return errors.Errorf("skeleton %q has %d point colors for %d joints",
			s.Name, len(s.PointColors), len(s.Joints))
	}

	if len(s.LinkColors) != len(s.Edges) {
		return errors.Errorf("skeleton %q has %d link colors for %d edges",
			s.Name, len(s.LinkColors), len(s.Edges))
	}

	return nil
}

/* COCO keypoints
0: Nose
1: Left Eye
2: Right Eye
3: Left Ear
4: Right Ear
5: Left Shoulder
6: Right Shoulder
7: Left Elbow
8: Right Elbow
9: Left Wrist
10: Right Wrist
11: Left Hip
12: Right Hip
13: Left Knee
14: Right Knee
15: Left Ankle
16: Right Ankle
*/

// COCO17 returns the 17 keypoint COCO person skeleton
func COCO17() Skeleton {
	return Skeleton{
		Name: "coco17",
		Joints: []string{
			"nose", "left_eye", "right_eye", "left_ear", "right_ear",
			"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
			"left_wrist", "right_wrist", "left_hip", "right_hip",
			"left_knee", "right_knee", "left_ankle", "right_ankle",
		},
		Edges: []Edge{
			{15, 13}, {13, 11}, {16, 14}, {14, 12}, {11, 12},
			{5, 11}, {6, 12}, {5, 6}, {5, 7}, {6, 8},
			{7, 9}, {8, 10}, {1, 2}, {0, 1}, {0, 2},
			{1, 3}, {2, 4}, {3, 5}, {4, 6},
		},
		PointColors: append([]color.RGBA(nil), keyPointColors...),
		LinkColors:  append([]color.RGBA(nil), limbColors...),
	}
}

// SkeletonConfig is the user configurable form of a Skeleton
type SkeletonConfig struct {
	Name   string   `mapstructure:"name"`
	Joints []string `mapstructure:"joints"`
	// Edges are pairs of joint indexes
	Edges [][2]int `mapstructure:"edges"`
	// PointColors and LinkColors are RGB triplets.  When omitted colors are
	// taken from the pose palette in turn.
	PointColors [][3]uint8 `mapstructure:"point_colors"`
	LinkColors  [][3]uint8 `mapstructure:"link_colors"`
}

// SkeletonFromConfig builds and validates a custom skeleton
func SkeletonFromConfig(cfg SkeletonConfig) (Skeleton, error) {

	s := Skeleton{
		Name:   cfg.Name,
		Joints: cfg.Joints,
		Edges:  make([]Edge, len(cfg.Edges)),
	}

	if s.Name == "" {
		s.Name = "custom"
	}

	for i, e := range cfg.Edges {
		s.Edges[i] = Edge{From: e[0], To: e[1]}
	}

	s.PointColors = configColors(cfg.PointColors, len(s.Joints))
	s.LinkColors = configColors(cfg.LinkColors, len(s.Edges))

	if err := s.Validate(); err != nil {
		return Skeleton{}, err
	}

	return s, nil
}

// configColors converts RGB triplets to colors, cycling the pose palette when
// none are given
func configColors(rgb [][3]uint8, n int) []color.RGBA {

	if len(rgb) == 0 {
		out := make([]color.RGBA, n)
		for i := range out {
			out[i] = posePalette[i%len(posePalette)]
		}
		return out
	}

	out := make([]color.RGBA, len(rgb))

	for i, c := range rgb {
		out[i] = color.RGBA{R: c[0], G: c[1], B: c[2], A: 255}
	}

	return out
}
