package protocol

// Request is the available spectrum inquiry as received on the wire. Pointer
// and slice fields distinguish absent from zero.
type Request struct {
	RequestID              string            `json:"requestId"`
	DeviceDescriptor       *DeviceDescriptor `json:"deviceDescriptor,omitempty"`
	Location               *Location         `json:"location,omitempty"`
	InquiredChannels       []ChannelQuery    `json:"inquiredChannels"`
	InquiredFrequencyRange []FrequencyRange  `json:"inquiredFrequencyRange"`
	Environment            *string           `json:"environment,omitempty"`
	PathModel              *string           `json:"pathModel,omitempty"`
	ProtectionMarginDB     *float64          `json:"protectionMarginDb,omitempty"`
	PenetrationLossDB      *float64          `json:"penetrationLossDb,omitempty"`
	MinDesiredPower        *float64          `json:"minDesiredPower,omitempty"`
	MergeBins              *bool             `json:"mergeBins,omitempty"`
}

type DeviceDescriptor struct {
	SerialNumber    string `json:"serialNumber"`
	CertificationID string `json:"certificationId"`
}

type Point struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type Ellipse struct {
	Center      *Point   `json:"center"`
	MajorAxis   *float64 `json:"majorAxis"`
	MinorAxis   *float64 `json:"minorAxis"`
	Orientation *float64 `json:"orientation"`
}

type LinearPolygon struct {
	OuterBoundary []Point `json:"outerBoundary"`
}

type Vector struct {
	Angle  *float64 `json:"angle"`
	Length *float64 `json:"length"`
}

type RadialPolygon struct {
	Center        *Point   `json:"center"`
	OuterBoundary []Vector `json:"outerBoundary"`
}

type Elevation struct {
	Height     *float64 `json:"height"`
	HeightType string   `json:"heightType,omitempty"`
}

// Indoor deployment values.
const (
	DeploymentUnknown = 0
	DeploymentIndoor  = 1
	DeploymentOutdoor = 2
)

type Location struct {
	Point            *Point         `json:"point,omitempty"`
	Ellipse          *Ellipse       `json:"ellipse,omitempty"`
	LinearPolygon    *LinearPolygon `json:"linearPolygon,omitempty"`
	RadialPolygon    *RadialPolygon `json:"radialPolygon,omitempty"`
	Elevation        *Elevation     `json:"elevation,omitempty"`
	IndoorDeployment *int           `json:"indoorDeployment,omitempty"`
}

type ChannelQuery struct {
	GlobalOperatingClass *int  `json:"globalOperatingClass"`
	ChannelCfi           []int `json:"channelCfi"`
}

type FrequencyRange struct {
	LowFrequency  *float64 `json:"lowFrequency"`
	HighFrequency *float64 `json:"highFrequency"`
}

type Response struct {
	RequestID              string          `json:"requestId"`
	Response               Status          `json:"response"`
	AvailabilityExpireTime string          `json:"availabilityExpireTime,omitempty"`
	AvailableChannelInfo   []ChannelInfo   `json:"availableChannelInfo,omitempty"`
	AvailableFrequencyInfo []FrequencyInfo `json:"availableFrequencyInfo,omitempty"`
}

type Status struct {
	ResponseCode     Code              `json:"responseCode"`
	ShortDescription string            `json:"shortDescription,omitempty"`
	SupplementalInfo *SupplementalInfo `json:"supplementalInfo,omitempty"`
}

type SupplementalInfo struct {
	MissingParams    []string `json:"missingParams,omitempty"`
	InvalidParams    []string `json:"invalidParams,omitempty"`
	UnexpectedParams []string `json:"unexpectedParams,omitempty"`
}

type ChannelInfo struct {
	GlobalOperatingClass int       `json:"globalOperatingClass"`
	ChannelCfi           []int     `json:"channelCfi"`
	MaxEirp              []float64 `json:"maxEirp"`
}

type Range struct {
	LowFrequency  float64 `json:"lowFrequency"`
	HighFrequency float64 `json:"highFrequency"`
}

type FrequencyInfo struct {
	FrequencyRange Range   `json:"frequencyRange"`
	MaxPsd         float64 `json:"maxPsd"`
}
