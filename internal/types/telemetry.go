package types

// Telemetry metric names.
// All publishers MUST use these constants.
const (
	// Metric Names
	MetricRunCompleted     = "RunCompleted"
	MetricRunDuration      = "RunDuration"
	MetricBuildingsLoaded  = "BuildingsLoaded"
	MetricBuildingsSkipped = "BuildingsSkipped"
	MetricRoadsLoaded      = "RoadsLoaded"
	MetricShadowPolygons   = "ShadowPolygons"
	MetricShadedSegments   = "ShadedSegments"
	MetricShadedLength     = "ShadedLength"
	MetricRoadFailures     = "RoadFailures"
	MetricSunElevation     = "SunElevation"
	MetricSunAzimuth       = "SunAzimuth"
	MetricSunBelowHorizon  = "SunBelowHorizon"

	// Dimension Keys
	DimTargetCRS = "TargetCRS"

	// Metric Namespace
	MetricNamespace = "ShadowRoads"
)
