// Package sensors configures and decodes the Sphero data streaming
// service.
//
// The robot samples its sensors at 400 Hz and streams a configurable
// subset as async packets. Which values appear in a frame is controlled
// by two 32-bit masks; enabling is group-wise (all three accelerometer
// axes or none). A StreamConfig holds the masks and packet shape, builds
// the SET DATA STREAMING request payload, and decodes the resulting
// frames back into named, ordered sensor groups. The package also parses
// power state telemetry.
package sensors
