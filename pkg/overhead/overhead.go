package overhead

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"

	"github.com/roversim-team/roversim/sim-bridge/pkg/fdm"
)

// Top-down debug snapshot of the world: ground grid, rover chassis oriented
// by yaw, wheels and a heading line.  Pure function of an FDM packet so it
// can be called from the link without touching the solver.

const (
	imageSize    = 512
	metresAcross = 8.0 // world metres spanned by the image
	pixPerMetre  = imageSize / metresAcross
)

// Render draws the packet's state.  The rover body is drawn as a rectangle;
// wheel spin state is not drawn, only positions.
func Render(pkt fdm.Packet) *gg.Context {
	dc := gg.NewContext(imageSize, imageSize)

	dc.SetRGB(0.13, 0.15, 0.13)
	dc.Clear()

	// 1m ground grid centred on the origin.
	dc.SetRGBA(1, 1, 1, 0.15)
	dc.SetLineWidth(1)
	for m := -metresAcross / 2; m <= metresAcross/2; m++ {
		x, y := toImage(m, -metresAcross/2)
		x2, y2 := toImage(m, metresAcross/2)
		dc.DrawLine(x, y, x2, y2)
		x, y = toImage(-metresAcross/2, m)
		x2, y2 = toImage(metresAcross/2, m)
		dc.DrawLine(x, y, x2, y2)
	}
	dc.Stroke()

	yaw := YawFromQuaternion(pkt.Body.Quaternion)
	bx, by := toImage(pkt.Body.Position[0], pkt.Body.Position[2])

	// Wheels first so the chassis draws over them.
	dc.SetRGBA(0.8, 0.8, 0.8, 1)
	for _, wheel := range pkt.Wheels {
		wx, wy := toImage(wheel.Position[0], wheel.Position[2])
		dc.DrawCircle(wx, wy, 0.05*pixPerMetre)
	}
	dc.Fill()

	// Chassis.
	dc.Push()
	dc.RotateAbout(-yaw, bx, by)
	dc.SetRGBA(1, 0.9, 0, 1)
	dc.DrawRectangle(bx-0.1*pixPerMetre, by-0.19*pixPerMetre, 0.2*pixPerMetre, 0.38*pixPerMetre)
	dc.Fill()
	dc.Pop()

	// Heading line.
	dc.SetRGBA(1, 0.2, 0, 1)
	dc.SetLineWidth(2)
	dc.DrawLine(bx, by, bx+math.Sin(yaw)*0.5*pixPerMetre, by-math.Cos(yaw)*0.5*pixPerMetre)
	dc.Stroke()

	dc.SetRGBA(1, 1, 1, 0.8)
	dc.DrawString(fmt.Sprintf("t=%.3fs", pkt.Timestamp), 8, 16)
	if pkt.Paused {
		dc.DrawString("PAUSED", 8, 32)
	}

	return dc
}

// Save renders the packet and writes a PNG.
func Save(pkt fdm.Packet, path string) error {
	return Render(pkt).SavePNG(path)
}

// YawFromQuaternion extracts rotation about the vertical (Y) axis from a
// w-first quaternion.
func YawFromQuaternion(q [4]float64) float64 {
	w, x, y, z := q[0], q[1], q[2], q[3]
	return math.Atan2(2*(w*y+x*z), 1-2*(y*y+z*z))
}

// toImage maps world-plane coordinates (x east, z north) to image pixels,
// origin at the image centre.
func toImage(x, z float64) (float64, float64) {
	return imageSize/2 + x*pixPerMetre, imageSize/2 - z*pixPerMetre
}
