package filter

import "math"

// op is one CSS filter function. Linear functions use slope and intercept,
// channel-mixing functions use a 3x3 matrix.
type op struct {
	matrix *[3][3]float64
	slope  float64
	offset float64
}

func (o op) apply(px [3]float64) [3]float64 {
	var out [3]float64
	if o.matrix != nil {
		m := o.matrix
		for i := range 3 {
			out[i] = clamp(m[i][0]*px[0] + m[i][1]*px[1] + m[i][2]*px[2])
		}
		return out
	}
	for i := range 3 {
		out[i] = clamp(px[i]*o.slope + o.offset)
	}
	return out
}

func brightness(a float64) op {
	return op{slope: a}
}

func contrast(a float64) op {
	return op{slope: a, offset: 0.5 - 0.5*a}
}

func saturate(s float64) op {
	return op{matrix: &[3][3]float64{
		{0.213 + 0.787*s, 0.715 - 0.715*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 + 0.285*s, 0.072 - 0.072*s},
		{0.213 - 0.213*s, 0.715 - 0.715*s, 0.072 + 0.928*s},
	}}
}

func sepia(amount float64) op {
	a := 1 - math.Min(1, amount)
	return op{matrix: &[3][3]float64{
		{0.393 + 0.607*a, 0.769 - 0.769*a, 0.189 - 0.189*a},
		{0.349 - 0.349*a, 0.686 + 0.314*a, 0.168 - 0.168*a},
		{0.272 - 0.272*a, 0.534 - 0.534*a, 0.131 + 0.869*a},
	}}
}

func hueRotate(deg float64) op {
	rad := deg * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	return op{matrix: &[3][3]float64{
		{0.213 + c*0.787 - s*0.213, 0.715 - c*0.715 - s*0.715, 0.072 - c*0.072 + s*0.928},
		{0.213 - c*0.213 + s*0.143, 0.715 + c*0.285 + s*0.140, 0.072 - c*0.072 - s*0.283},
		{0.213 - c*0.213 - s*0.787, 0.715 - c*0.715 + s*0.715, 0.072 + c*0.928 + s*0.072},
	}}
}
