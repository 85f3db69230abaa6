package speech

import "time"

// TTSConfig 11Labs 文本转语音配置
type TTSConfig struct {
	// API 基础地址
	BaseURL string `yaml:"base_url" json:"base_url"`

	// 声音 ID
	VoiceID string `yaml:"voice_id" json:"voice_id"`

	// 模型
	Model string `yaml:"model" json:"model"`

	// 输出格式
	OutputFormat string `yaml:"output_format" json:"output_format"`

	// 请求超时
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultTTSConfig 返回默认 TTS 配置
func DefaultTTSConfig() TTSConfig {
	return TTSConfig{
		BaseURL:      "https://api.elevenlabs.io",
		VoiceID:      "ErXwobaYiN019PkySvjV",
		Model:        "eleven_multilingual_v2",
		OutputFormat: "mp3_44100_128",
		Timeout:      120 * time.Second,
	}
}

// STTConfig 11Labs 语音转文本配置
type STTConfig struct {
	// API 基础地址
	BaseURL string `yaml:"base_url" json:"base_url"`

	// 模型
	Model string `yaml:"model" json:"model"`

	// 请求超时
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// DefaultSTTConfig 返回默认 STT 配置
func DefaultSTTConfig() STTConfig {
	return STTConfig{
		BaseURL: "https://api.elevenlabs.io",
		Model:   "scribe_v1",
		Timeout: 120 * time.Second,
	}
}
