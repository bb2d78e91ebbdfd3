package l1frames

import "sort"

// Cluster is a named group of anatomically related landmark indices.
type Cluster struct {
	Name    string
	Indices []int
}

// ClusterTable is an ordered list of clusters. Order matters: when a
// landmark appears in more than one cluster, the first cluster wins for
// per-landmark lookups.
type ClusterTable []Cluster

// Lookup returns the cluster with the given name.
func (t ClusterTable) Lookup(name string) (Cluster, bool) {
	for _, c := range t {
		if c.Name == name {
			return c, true
		}
	}
	return Cluster{}, false
}

// Names returns the cluster names in table order.
func (t ClusterTable) Names() []string {
	out := make([]string, len(t))
	for i, c := range t {
		out[i] = c.Name
	}
	return out
}

// Assignment maps each landmark in [0, n) to the position of its first
// cluster in the table, or -1 when the landmark is unclustered. Indices
// outside [0, n) are ignored.
func (t ClusterTable) Assignment(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = -1
	}
	for ci, c := range t {
		for _, idx := range c.Indices {
			if idx >= 0 && idx < n && out[idx] < 0 {
				out[idx] = ci
			}
		}
	}
	return out
}

// ClusterGroup is a higher-level grouping of clusters (e.g. "mouth").
type ClusterGroup struct {
	Name     string
	Clusters []string
}

// GroupIndices returns the sorted, de-duplicated landmark indices of every
// cluster in the named group.
func GroupIndices(table ClusterTable, groups []ClusterGroup, name string) []int {
	seen := make(map[int]struct{})
	for _, g := range groups {
		if g.Name != name {
			continue
		}
		for _, cn := range g.Clusters {
			if c, ok := table.Lookup(cn); ok {
				for _, idx := range c.Indices {
					seen[idx] = struct{}{}
				}
			}
		}
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// FaceMeshLandmarks is the landmark count of the refined MediaPipe face
// mesh (468 surface points plus 10 iris points).
const FaceMeshLandmarks = 478

// FacialClusters returns the anatomical cluster table for the MediaPipe
// face mesh. A fresh table is returned on each call.
func FacialClusters() ClusterTable {
	return ClusterTable{
		{"silhouette", []int{
			10, 338, 297, 332, 284, 251, 389, 356, 454, 323, 361, 288,
			397, 365, 379, 378, 400, 377, 152, 148, 176, 149, 150, 136,
			172, 58, 132, 93, 234, 127, 162, 21, 54, 103, 67, 109,
		}},

		{"lipsUpperOuter", []int{61, 185, 40, 39, 37, 0, 267, 269, 270, 409, 291}},
		{"lipsLowerOuter", []int{146, 91, 181, 84, 17, 314, 405, 321, 375, 291}},
		{"lipsUpperInner", []int{78, 191, 80, 81, 82, 13, 312, 311, 310, 415, 308}},
		{"lipsLowerInner", []int{78, 95, 88, 178, 87, 14, 317, 402, 318, 324, 308}},

		{"rightEyeUpper0", []int{246, 161, 160, 159, 158, 157, 173}},
		{"rightEyeLower0", []int{33, 7, 163, 144, 145, 153, 154, 155, 133}},
		{"rightEyeUpper1", []int{247, 30, 29, 27, 28, 56, 190}},
		{"rightEyeLower1", []int{130, 25, 110, 24, 23, 22, 26, 112, 243}},
		{"rightEyeUpper2", []int{113, 225, 224, 223, 222, 221, 189}},
		{"rightEyeLower2", []int{226, 31, 228, 229, 230, 231, 232, 233, 244}},
		{"rightEyeLower3", []int{143, 111, 117, 118, 119, 120, 121, 128, 245}},
		{"rightEyeIris", []int{473, 474, 475, 476, 477}},

		{"rightEyebrowUpper", []int{156, 70, 63, 105, 66, 107, 55, 193}},
		{"rightEyebrowLower", []int{35, 124, 46, 53, 52, 65}},

		{"leftEyeUpper0", []int{466, 388, 387, 386, 385, 384, 398}},
		{"leftEyeLower0", []int{263, 249, 390, 373, 374, 380, 381, 382, 362}},
		{"leftEyeUpper1", []int{467, 260, 259, 257, 258, 286, 414}},
		{"leftEyeLower1", []int{359, 255, 339, 254, 253, 252, 256, 341, 463}},
		{"leftEyeUpper2", []int{342, 445, 444, 443, 442, 441, 413}},
		{"leftEyeLower2", []int{446, 261, 448, 449, 450, 451, 452, 453, 464}},
		{"leftEyeLower3", []int{372, 340, 346, 347, 348, 349, 350, 357, 465}},
		{"leftEyeIris", []int{468, 469, 470, 471, 472}},

		{"leftEyebrowUpper", []int{383, 300, 293, 334, 296, 336, 285, 417}},
		{"leftEyebrowLower", []int{265, 353, 276, 283, 282, 295}},

		{"midwayBetweenEyes", []int{168}},
		{"noseTip", []int{1}},
		{"noseBottom", []int{2}},
		{"noseRightCorner", []int{98}},
		{"noseLeftCorner", []int{327}},
		{"rightCheek", []int{205}},
		{"leftCheek", []int{425}},
	}
}

// ClusterGroups returns the higher-level groupings over FacialClusters.
func ClusterGroups() []ClusterGroup {
	return []ClusterGroup{
		{"mouth", []string{"lipsUpperOuter", "lipsLowerOuter", "lipsUpperInner", "lipsLowerInner"}},
		{"right_eye", []string{
			"rightEyeUpper0", "rightEyeLower0", "rightEyeUpper1", "rightEyeLower1",
			"rightEyeUpper2", "rightEyeLower2", "rightEyeLower3", "rightEyeIris",
		}},
		{"left_eye", []string{
			"leftEyeUpper0", "leftEyeLower0", "leftEyeUpper1", "leftEyeLower1",
			"leftEyeUpper2", "leftEyeLower2", "leftEyeLower3", "leftEyeIris",
		}},
		{"eyebrows", []string{"rightEyebrowUpper", "rightEyebrowLower", "leftEyebrowUpper", "leftEyebrowLower"}},
		{"nose", []string{"noseTip", "noseBottom", "noseRightCorner", "noseLeftCorner"}},
		{"cheeks", []string{"rightCheek", "leftCheek"}},
		{"face_shape", []string{"silhouette"}},
	}
}
