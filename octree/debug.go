package octree

type DebugInfo struct {
	Capacity      int     `json:"capacity"`
	HalfWidth     float32 `json:"half_width"`
	Height        int     `json:"height"`
	Nodes         int     `json:"nodes"`
	Leaves        int     `json:"leaves"`
	Points        int     `json:"points"`
	MaxDepth      int     `json:"max_depth"`
	MaxLeafPoints int     `json:"max_leaf_points"`
}

func (o *Octree) GetDebugInfo() DebugInfo {
	info := DebugInfo{
		Capacity:  o.Capacity,
		HalfWidth: o.HalfWidth,
		Height:    o.Height,
	}

	o.Walk(func(n *Octree) bool {
		info.Nodes++
		info.MaxDepth = max(info.MaxDepth, n.Depth-o.Depth)

		if n.IsLeaf() {
			info.Leaves++
			info.Points += len(n.points)
			info.MaxLeafPoints = max(info.MaxLeafPoints, len(n.points))
		}
		return true
	})
	return info
}
