// Package build turns a scaffolded Capacitor project into a debug APK.
//
// The executor is a small state machine: sync web content, run the platform
// doctor, then walk an ordered list of Gradle invocation strategies until one
// produces the artifact. When every strategy fails, a fresh artifact left by
// one of the attempts may still be recovered.
package build
