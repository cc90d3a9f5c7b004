package config

import "github.com/joho/godotenv"

// LoadEnv loads a .env file from the working directory into the process
// environment. Variables that are already set win. A missing file is
// reported as an os.IsNotExist error.
func LoadEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}
